package engine

import (
	"io"
	"net/http"
	"strings"
	"time"

	"clp/pkg/configstore"
	"clp/pkg/loadbalancer"
	"clp/pkg/requestlog"
	"clp/pkg/router"
	"clp/pkg/usage"
)

// ServeHTTP implements http.Handler: it is the single entry point for
// every client request that reaches this service's engine.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		e.logger.Error("failed to read request body", "service", e.service, "error", err)
		e.writeSyntheticFailure(w, 500, "internal error")
		return
	}
	e.proxy(w, r, body)
}

func dialectForService(service string) usage.Dialect {
	if service == "codex" {
		return usage.CodexDialect{}
	}
	return usage.ClaudeDialect{}
}

func isJSONish(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "json")
}

// proxy runs the seven-phase pipeline described in spec §4.10.
func (e *Engine) proxy(w http.ResponseWriter, r *http.Request, body []byte) {
	start := time.Now()
	requestID := e.ids.Next()
	dialect := dialectForService(e.service)

	// Phase 1: block check.
	if match := e.blocker.Evaluate(e.service, r.Method, r.URL.Path, r.URL.Query()); match != nil {
		e.publish(newStartedEvent(e.service, requestID, "", ""))
		e.writeSyntheticFailure(w, match.Status, match.Message)
		e.publish(newCompletedEvent(e.service, requestID, false, match.Status, time.Since(start).Milliseconds()))
		e.recordRequest("", "blocked", time.Since(start), 0)
		e.appendRecord(&requestlog.RequestRecord{
			ID:                requestID,
			Service:           e.service,
			TimestampUnixNano: start.UnixNano(),
			ClientMethod:      r.Method,
			ClientPath:        r.URL.Path,
			OriginalHeaders:   headerMap(r.Header),
			OriginalBodyB64:   b64Truncated(body),
			StatusCode:        match.Status,
			DurationMS:        time.Since(start).Milliseconds(),
			Blocked:           true,
			BlockedBy:         match.RuleID,
			BlockedReason:     match.Message,
		})
		return
	}

	// Phase 2: parse & route.
	effectiveBody := body
	forcedConfig := ""
	if isJSONish(r.Header.Get("Content-Type")) {
		newBody, forced, changed := e.router.Route(e.service, body)
		if changed {
			effectiveBody = newBody
		}
		forcedConfig = forced
	}
	model, _ := router.ExtractModel(effectiveBody)

	// Phase 3: select candidates.
	configs, err := e.configStore.Get(e.service)
	if err != nil {
		e.logger.Error("config store unavailable", "service", e.service, "error", err)
		e.publish(newStartedEvent(e.service, requestID, "", model))
		e.terminalFailure(w, requestID, start, r, effectiveBody, 503, "no upstream configuration available")
		return
	}

	forced := forcedConfig != ""
	var candidates []*configstore.UpstreamConfig
	if forced {
		if cfg, ok := configs[forcedConfig]; ok && !cfg.Deleted {
			candidates = []*configstore.UpstreamConfig{cfg}
		}
	} else {
		candidates, err = e.lb.Pick(e.service, configs)
		if err != nil {
			e.logger.Error("load balancer unavailable", "service", e.service, "error", err)
			e.publish(newStartedEvent(e.service, requestID, "", model))
			e.terminalFailure(w, requestID, start, r, effectiveBody, 503, "no upstream configuration available")
			return
		}
	}

	if len(candidates) == 0 {
		e.publish(newStartedEvent(e.service, requestID, "", model))
		e.publishExhausted()
		e.terminalFailure(w, requestID, start, r, effectiveBody, 503, "no healthy upstream")
		return
	}

	e.publish(newStartedEvent(e.service, requestID, candidates[0].Name, model))

	mode := loadbalancer.ModeActiveFirst
	if !forced {
		if m, err := e.lb.Mode(); err == nil {
			mode = m
		}
	}
	retryEligible := !forced && mode == loadbalancer.ModeWeightBased

	e.runAttempts(w, r, requestID, start, effectiveBody, candidates, forced, retryEligible, dialect)
}
