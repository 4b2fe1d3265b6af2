package engine

import (
	"time"

	"clp/pkg/usage"
)

// recordRequest is a nil-safe wrapper around Collector.RecordRequest; a nil
// metrics collector (e.g. metrics disabled, or a test wiring only the
// pieces it exercises) makes recording a no-op.
func (e *Engine) recordRequest(configName, status string, duration time.Duration, tokens int64) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordRequest(e.service, configName, status, duration, int(tokens))
}

func (e *Engine) recordLBSwitch() {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordLBSwitch(e.service)
}

func (e *Engine) recordLBReset() {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordLBReset(e.service)
}

func (e *Engine) recordLBExhausted() {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordLBExhausted(e.service)
}

// recordUsage breaks a UsageTotals out into the collector's per-metric
// counters.
func (e *Engine) recordUsage(totals usage.UsageTotals) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordUsage(e.service, "input", int(totals.Input))
	e.metrics.RecordUsage(e.service, "cached_create", int(totals.CachedCreate))
	e.metrics.RecordUsage(e.service, "cached_read", int(totals.CachedRead))
	e.metrics.RecordUsage(e.service, "output", int(totals.Output))
	e.metrics.RecordUsage(e.service, "reasoning", int(totals.Reasoning))
	e.metrics.RecordUsage(e.service, "total", int(totals.Total))
}
