// Package stats provides a minimal scoped metrics receiver backed by
// go-metrics. A StatsReceiver can be passed down a call tree and scoped at
// each level; hierarchical names use a '/' separator.
package stats

import (
	"strings"

	"github.com/rcrowley/go-metrics"
)

type StatsReceiver interface {
	// Return a stats receiver that will automatically namespace elements
	// with the given scope args.
	Scope(scope ...string) StatsReceiver

	Counter(name ...string) metrics.Counter
	Gauge(name ...string) metrics.Gauge
}

// DefaultStatsReceiver records to a private go-metrics registry.
func DefaultStatsReceiver() StatsReceiver {
	return &defaultStatsReceiver{registry: metrics.NewRegistry()}
}

// NilStatsReceiver discards all recordings. Useful as a default in tests.
func NilStatsReceiver(scope ...string) StatsReceiver {
	return &nilStatsReceiver{}
}

type defaultStatsReceiver struct {
	registry metrics.Registry
	scope    []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{registry: s.registry, scope: append(append([]string{}, s.scope...), scope...)}
}

func (s *defaultStatsReceiver) Counter(name ...string) metrics.Counter {
	return metrics.GetOrRegisterCounter(s.scoped(name...), s.registry)
}

func (s *defaultStatsReceiver) Gauge(name ...string) metrics.Gauge {
	return metrics.GetOrRegisterGauge(s.scoped(name...), s.registry)
}

// Scope elements containing the separator would corrupt the hierarchy, so
// they are replaced rather than rejected: counters are often dynamically
// generated from error names.
func (s *defaultStatsReceiver) scoped(name ...string) string {
	elems := append(append([]string{}, s.scope...), name...)
	for i, e := range elems {
		elems[i] = strings.Replace(e, "/", "_SLASH_", -1)
	}
	return strings.Join(elems, "/")
}

type nilStatsReceiver struct{}

func (s *nilStatsReceiver) Scope(scope ...string) StatsReceiver    { return s }
func (s *nilStatsReceiver) Counter(name ...string) metrics.Counter { return metrics.NilCounter{} }
func (s *nilStatsReceiver) Gauge(name ...string) metrics.Gauge     { return metrics.NilGauge{} }
