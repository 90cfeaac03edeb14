// Package config loads per-submitter overrides for step programs and task
// counts from the object store. Absence of the config key, or of any single
// field, means the defaults are used.
package config

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/rankmaniac/rankmaniac/storage"
)

// ConfigKey is the per-submitter key holding overrides, relative to the
// submitter's namespace.
const ConfigKey = "rankmaniac.json"

// TeamConfig names the mapper/reducer programs for both stages and the task
// counts for the rank stage. The process stage always runs with one mapper
// and one reducer, since it only selects and orders the rank output.
type TeamConfig struct {
	RankMapper      string `json:"rank_mapper"`
	RankReducer     string `json:"rank_reducer"`
	ProcessMapper   string `json:"process_mapper"`
	ProcessReducer  string `json:"process_reducer"`
	NumRankMappers  int    `json:"num_rank_mappers"`
	NumRankReducers int    `json:"num_rank_reducers"`
}

func Default() TeamConfig {
	return TeamConfig{
		RankMapper:      "rank_map.py",
		RankReducer:     "rank_reduce.py",
		ProcessMapper:   "process_map.py",
		ProcessReducer:  "process_reduce.py",
		NumRankMappers:  1,
		NumRankReducers: 1,
	}
}

// Load reads the submitter's config from the store, filling missing fields
// with defaults. A missing key is not an error; a present but unparseable
// one is, so a submitter cannot silently run with defaults they tried to
// override.
func Load(store storage.Store, submitterID string) (TeamConfig, error) {
	cfg := Default()
	contents, err := store.GetContents(storage.JoinKey(submitterID, ConfigKey))
	if storage.IsNotFound(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(contents, &cfg); err != nil {
		return Default(), err
	}
	cfg.applyDefaults()
	log.Debugf("loaded config for %s: %+v", submitterID, cfg)
	return cfg, nil
}

func (c *TeamConfig) applyDefaults() {
	def := Default()
	if c.RankMapper == "" {
		c.RankMapper = def.RankMapper
	}
	if c.RankReducer == "" {
		c.RankReducer = def.RankReducer
	}
	if c.ProcessMapper == "" {
		c.ProcessMapper = def.ProcessMapper
	}
	if c.ProcessReducer == "" {
		c.ProcessReducer = def.ProcessReducer
	}
	if c.NumRankMappers <= 0 {
		c.NumRankMappers = def.NumRankMappers
	}
	if c.NumRankReducers <= 0 {
		c.NumRankReducers = def.NumRankReducers
	}
}
