package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	storagefake "github.com/rankmaniac/rankmaniac/storage/fake"
)

func TestLoadMissingKeyReturnsDefaults(t *testing.T) {
	store := storagefake.NewInMemory()
	cfg, err := Load(store, "teamA")
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialOverride(t *testing.T) {
	store := storagefake.NewInMemory()
	store.PutContents("teamA/rankmaniac.json",
		[]byte(`{"rank_mapper": "pagerank.py", "num_rank_reducers": 4}`))

	cfg, err := Load(store, "teamA")
	assert.NoError(t, err)
	assert.Equal(t, "pagerank.py", cfg.RankMapper)
	assert.Equal(t, 4, cfg.NumRankReducers)

	// Unset fields fall back.
	assert.Equal(t, "rank_reduce.py", cfg.RankReducer)
	assert.Equal(t, "process_map.py", cfg.ProcessMapper)
	assert.Equal(t, 1, cfg.NumRankMappers)
}

func TestLoadRejectsNonPositiveTaskCounts(t *testing.T) {
	store := storagefake.NewInMemory()
	store.PutContents("teamA/rankmaniac.json", []byte(`{"num_rank_mappers": -3}`))

	cfg, err := Load(store, "teamA")
	assert.NoError(t, err)
	assert.Equal(t, 1, cfg.NumRankMappers)
}

func TestLoadUnparseableConfigIsAnError(t *testing.T) {
	store := storagefake.NewInMemory()
	store.PutContents("teamA/rankmaniac.json", []byte("rank_mapper = pagerank.py"))

	cfg, err := Load(store, "teamA")
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg, "a broken override must not partially apply")
}
