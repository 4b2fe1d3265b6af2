package engine

import (
	"net"
	"net/http"
	"time"
)

// newUpstreamClient builds the HTTP client used for every upstream
// exchange: a connection pool sized per spec §5 (200 max connections, 100
// keep-alive), a 30s connect timeout, and a 300s read-idle timeout.
// Streaming responses may run arbitrarily long once bytes are flowing —
// only the connect and idle-between-reads windows are bounded, so the
// client itself carries no overall request timeout.
func newUpstreamClient() *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		MaxConnsPerHost:       200,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       300 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport}
}
