package engine

import (
	"encoding/base64"
	"net/http"
	"strings"

	"clp/pkg/requestlog"
)

// headerMap flattens an http.Header into a single string per name, joining
// repeated values with ", " — enough fidelity for the request log, which
// is a debugging aid, not a byte-exact header replay.
func headerMap(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func b64Truncated(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(requestlog.TruncateBody(body))
}
