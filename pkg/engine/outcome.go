package engine

import (
	"net/http"
	"time"

	"clp/pkg/configstore"
	"clp/pkg/requestlog"
	"clp/pkg/usage"
)

// runAttempts drives phases 4-7: building and sending each candidate
// attempt, applying the load-balancer outcome, retrying within
// weight-based mode, and logging the finalized record.
func (e *Engine) runAttempts(w http.ResponseWriter, r *http.Request, requestID string, start time.Time, body []byte, candidates []*configstore.UpstreamConfig, forced, retryEligible bool, dialect usage.Dialect) {
	attemptList := candidates
	round := 0

	for {
		for i, cfg := range attemptList {
			attemptBody := body
			if rewritten, changed := e.router.ApplyConfigModelMapping(e.service, body, cfg.Name); changed {
				attemptBody = rewritten
			}

			forward := forced || !retryEligible
			result := e.attempt(w, r, cfg, attemptBody, forward, dialect)

			if result.success {
				e.lb.OnSuccess(e.service, cfg.Name)
				e.finish(requestID, start, r, body, result, true, cfg.Name)
				return
			}

			excludedNow, _ := e.lb.OnFailure(e.service, cfg.Name)

			if forward {
				// Terminal: active-first or a forced config never retries.
				e.finish(requestID, start, r, body, result, false, cfg.Name)
				return
			}

			if i < len(attemptList)-1 {
				threshold := 0
				if opts, err := e.lb.Options(); err == nil {
					threshold = opts.FailureThreshold
				}
				failures := threshold
				if !excludedNow {
					failures = 0
				}
				e.publish(newLBSwitchEvent(e.service, cfg.Name, attemptList[i+1].Name, failures, threshold, i+1))
				e.recordLBSwitch()
				continue
			}
		}

		if round >= 1 {
			e.publishExhausted()
			e.terminalFailure(w, requestID, start, r, body, 503, "no healthy upstream")
			return
		}

		reset, err := e.lb.MaybeReset(e.service)
		if err != nil || !reset {
			e.publishExhausted()
			e.terminalFailure(w, requestID, start, r, body, 503, "no healthy upstream")
			return
		}

		totalConfigs := len(attemptList)
		threshold := 0
		if opts, err := e.lb.Options(); err == nil {
			threshold = opts.FailureThreshold
		}
		e.publish(newLBResetEvent(e.service, totalConfigs, threshold))
		e.recordLBReset()

		configs, err := e.configStore.Get(e.service)
		if err != nil {
			e.terminalFailure(w, requestID, start, r, body, 503, "no upstream configuration available")
			return
		}
		nextList, err := e.lb.Pick(e.service, configs)
		if err != nil || len(nextList) == 0 {
			e.publishExhausted()
			e.terminalFailure(w, requestID, start, r, body, 503, "no healthy upstream")
			return
		}
		attemptList = nextList
		round++
	}
}

// terminalFailure writes a synthetic failure response, publishes
// request_completed, records the request metric, and appends the final
// record for a request that never reached a real upstream success or a
// forwarded failure. Used by every "gave up before/between attempts" exit
// out of runAttempts.
func (e *Engine) terminalFailure(w http.ResponseWriter, requestID string, start time.Time, r *http.Request, body []byte, status int, message string) {
	e.writeSyntheticFailure(w, status, message)
	e.publish(newCompletedEvent(e.service, requestID, false, status, time.Since(start).Milliseconds()))
	e.recordRequest("", "error", time.Since(start), 0)
	e.appendRecord(&requestlog.RequestRecord{
		ID:                requestID,
		Service:           e.service,
		TimestampUnixNano: start.UnixNano(),
		ClientMethod:      r.Method,
		ClientPath:        r.URL.Path,
		OriginalHeaders:   headerMap(r.Header),
		OriginalBodyB64:   b64Truncated(body),
		StatusCode:        status,
		DurationMS:        time.Since(start).Milliseconds(),
	})
}

func (e *Engine) publishExhausted() {
	threshold := 0
	if opts, err := e.lb.Options(); err == nil {
		threshold = opts.FailureThreshold
	}
	cooldown, _ := e.lb.CooldownRemaining(e.service)
	e.publish(newLBExhaustedEvent(e.service, threshold, cooldown))
	e.recordLBExhausted()
}

// finish publishes request_completed and appends the finalized record for
// an attempt that reached a terminal outcome (success, or a forwarded
// failure with no retry left).
func (e *Engine) finish(requestID string, start time.Time, r *http.Request, originalBody []byte, result attemptResult, success bool, configName string) {
	e.publish(newCompletedEvent(e.service, requestID, success, result.statusCode, result.durationMS))

	status := "success"
	if !success {
		status = "error"
	}
	e.recordRequest(configName, status, time.Duration(result.durationMS)*time.Millisecond, result.usage.Total)
	if success {
		e.recordUsage(result.usage)
	}

	rec := &requestlog.RequestRecord{
		ID:                 requestID,
		Service:            e.service,
		TimestampUnixNano:  start.UnixNano(),
		ClientMethod:       r.Method,
		ClientPath:         r.URL.Path,
		OriginalHeaders:    headerMap(r.Header),
		TargetHeaders:      result.reqHeaders,
		OriginalBodyB64:    b64Truncated(originalBody),
		FilteredBodyB64:    b64Truncated(result.sentBody),
		TargetURL:          result.targetURL,
		ConfigName:         configName,
		Channel:            configName,
		StatusCode:         result.statusCode,
		ResponseContentB64: b64Truncated(result.responseCopy),
		DurationMS:         result.durationMS,
		Usage:              result.usage,
	}
	e.appendRecord(rec)
}

func (e *Engine) appendRecord(rec *requestlog.RequestRecord) {
	if e.log == nil {
		return
	}
	if err := e.log.Append(rec); err != nil {
		e.logger.Error("failed to append request log record", "service", e.service, "error", err)
	}
}
