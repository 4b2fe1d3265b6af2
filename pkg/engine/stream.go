package engine

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"clp/pkg/configstore"
	"clp/pkg/requestlog"
	"clp/pkg/usage"
)

// hopByHopResponseHeaders are stripped from the upstream response before
// it is forwarded, per spec §4.10 step 5.
var hopByHopResponseHeaders = []string{"Transfer-Encoding", "Connection"}

// attemptResult carries everything the outcome phase and the request log
// need from one candidate attempt.
type attemptResult struct {
	success       bool
	statusCode    int // 0 when no response was received at all
	durationMS    int64
	usage         usage.UsageTotals
	responseCopy  []byte // truncated copy of the response body, for the log
	wroteToClient bool

	targetURL  string
	reqHeaders map[string]string
	sentBody   []byte
}

// isSuccessStatus implements spec §4.10 step 6's success predicate.
func isSuccessStatus(status int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	return status == 304 || status == 307
}

// attempt performs one upstream exchange against cfg. If forward is true,
// the response (success or failure) is streamed to the client verbatim —
// used for active-first/forced-config attempts, which are never retried.
// If forward is false and the attempt fails, the response body is
// discarded unread so the caller can retry against the next candidate.
func (e *Engine) attempt(w http.ResponseWriter, r *http.Request, cfg *configstore.UpstreamConfig, body []byte, forward bool, dialect usage.Dialect) attemptResult {
	start := time.Now()

	target, headers, sentBody, err := e.buildUpstreamRequest(r, cfg, body)
	if err != nil {
		return attemptResult{success: false, durationMS: time.Since(start).Milliseconds()}
	}

	result := attemptResult{
		targetURL:  target.String(),
		reqHeaders: headerMap(headers),
		sentBody:   sentBody,
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), bytes.NewReader(sentBody))
	if err != nil {
		result.durationMS = time.Since(start).Milliseconds()
		return result
	}
	req.Header = headers

	resp, err := e.client.Do(req)
	if err != nil {
		result.durationMS = time.Since(start).Milliseconds()
		result.success = false
		if forward {
			e.writeSyntheticFailure(w, 503, "no healthy upstream: "+classifyUpstreamError(err))
			result.wroteToClient = true
			result.statusCode = 503
		}
		return result
	}
	defer resp.Body.Close()

	result.statusCode = resp.StatusCode
	result.success = isSuccessStatus(resp.StatusCode)

	if !result.success && !forward {
		// This attempt will be retried against another candidate: drop
		// the body unread rather than forwarding it.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, requestlog.MaxBodyBytes))
		result.durationMS = time.Since(start).Milliseconds()
		return result
	}

	// Either a success (always forwarded) or a terminal failure
	// (forward=true, no retry left) — stream the response to the client.
	for _, h := range hopByHopResponseHeaders {
		resp.Header.Del(h)
	}
	header := w.Header()
	for name, values := range resp.Header {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	result.wroteToClient = true

	parser := usage.NewParser(usage.FramingForContentType(resp.Header.Get("Content-Type")), dialect)
	var captured bytes.Buffer
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			_, _ = w.Write(chunk)
			if flusher != nil {
				flusher.Flush()
			}
			if result.success {
				parser.Write(chunk)
			}
			if captured.Len() < requestlog.MaxBodyBytes {
				remaining := requestlog.MaxBodyBytes - captured.Len()
				if remaining > len(chunk) {
					captured.Write(chunk)
				} else {
					captured.Write(chunk[:remaining])
				}
			}
			if result.success {
				e.publish(newProgressEvent(e.service, resp.StatusCode, time.Since(start), chunk))
			}
		}
		if readErr != nil {
			break
		}
	}

	if result.success {
		result.usage = parser.Finish()
	}
	result.responseCopy = requestlog.TruncateBody(captured.Bytes())
	result.durationMS = time.Since(start).Milliseconds()
	return result
}

func (e *Engine) writeSyntheticFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}

// classifyUpstreamError distinguishes a connect failure from a read-idle
// timeout for logging; both are treated identically by the retry logic.
func classifyUpstreamError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "connect error"
}
