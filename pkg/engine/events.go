package engine

import (
	"time"

	"clp/pkg/hub"
)

// publish is a nil-safe wrapper around Hub.Publish; a nil hub (e.g. in a
// test wiring only the pieces it exercises) makes publishing a no-op.
func (e *Engine) publish(event hub.Event) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(e.service, event)
}

func newProgressEvent(service string, statusCode int, elapsed time.Duration, delta []byte) hub.Event {
	return hub.NewEvent(hub.EventProgress, service).
		With("status", statusCode).
		With("duration_ms", elapsed.Milliseconds()).
		With("response_delta", string(delta))
}

func newCompletedEvent(service string, requestID string, success bool, statusCode int, durationMS int64) hub.Event {
	return hub.NewEvent(hub.EventCompleted, service).
		WithRequestID(requestID).
		With("success", success).
		With("status_code", statusCode).
		With("duration_ms", durationMS)
}

func newStartedEvent(service, requestID, channel, model string) hub.Event {
	e := hub.NewEvent(hub.EventStarted, service).WithRequestID(requestID).With("channel", channel)
	if model != "" {
		e.With("model", model)
	}
	return e
}

func newLBSwitchEvent(service, from, to string, failures, threshold, attempt int) hub.Event {
	return hub.NewEvent(hub.EventLBSwitch, service).
		With("from_channel", from).
		With("to_channel", to).
		With("failures", failures).
		With("threshold", threshold).
		With("attempt", attempt)
}

func newLBResetEvent(service string, totalConfigs, threshold int) hub.Event {
	return hub.NewEvent(hub.EventLBReset, service).
		With("total_configs", totalConfigs).
		With("threshold", threshold)
}

func newLBExhaustedEvent(service string, threshold int, cooldownRemainingSeconds int) hub.Event {
	return hub.NewEvent(hub.EventLBExhausted, service).
		With("threshold", threshold).
		With("cooldown_remaining_seconds", cooldownRemainingSeconds)
}
