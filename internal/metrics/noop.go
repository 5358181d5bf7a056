package metrics

import "time"

// NoopCollector discards every observation.
type NoopCollector struct{}

// NewNoopCollector returns a collector that records nothing.
func NewNoopCollector() NoopCollector { return NoopCollector{} }

var _ Collector = NoopCollector{}

func (NoopCollector) ObserveStage(string, time.Duration) {}
func (NoopCollector) IncSearch(string)                   {}
func (NoopCollector) IncDegraded(string)                 {}
func (NoopCollector) IncCache(string)                    {}
