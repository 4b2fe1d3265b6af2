package engine

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"clp/pkg/configstore"
)

// strippedHeaders are removed from every outgoing upstream request
// regardless of the configured header filter, since they either identify
// the client-facing credential or are connection-specific and must be
// recomputed for the new request.
var strippedHeaders = []string{"Authorization", "Host", "Content-Length"}

// buildUpstreamRequest prepares the method, URL, headers, and body CLP
// will send to cfg for this attempt. body is the already router-rewritten
// request body; headerStripper additionally removes any
// header_filter.json blocklist entries.
func (e *Engine) buildUpstreamRequest(r *http.Request, cfg *configstore.UpstreamConfig, body []byte) (target *url.URL, headers http.Header, outBody []byte, err error) {
	headers = r.Header.Clone()
	for _, name := range strippedHeaders {
		headers.Del(name)
	}
	headers = e.headerStripper.Apply(headers)

	value, isAPIKey := cfg.Credential()
	if strings.HasPrefix(value, "${env:") || strings.HasPrefix(value, "${file:") {
		resolved, warning := resolveCredential(value)
		if warning != "" {
			e.logger.Warn("credential resolution failed, using literal value",
				"service", e.service, "config", cfg.Name, "warning", warning)
		}
		value = resolved
	}
	if isAPIKey {
		headers.Set("x-api-key", value)
	} else {
		headers.Set("Authorization", "Bearer "+value)
	}

	outBody = e.bodyRewriter.Apply(body)
	headers.Set("Content-Length", strconv.Itoa(len(outBody)))

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	target = &url.URL{
		Scheme:   base.Scheme,
		Host:     base.Host,
		Path:     joinPath(base.Path, r.URL.Path),
		RawQuery: r.URL.RawQuery,
	}

	return target, headers, outBody, nil
}

// joinPath concatenates a base path and a client path the way spec §4.10
// describes the upstream URL: config.base_url + client.path, without
// collapsing or normalizing either side beyond removing the duplicate
// slash at the join point.
func joinPath(base, clientPath string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(clientPath, "/") {
		clientPath = "/" + clientPath
	}
	return base + clientPath
}
