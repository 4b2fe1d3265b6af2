package requestlog

import "clp/pkg/usage"

// RequestRecord is one logged exchange. Bodies are stored base64-encoded;
// BlockedBy/BlockedReason are only set when Blocked is true.
type RequestRecord struct {
	ID                string            `json:"id"`
	Service           string            `json:"service"`
	TimestampUnixNano int64             `json:"timestamp"`
	ClientMethod      string            `json:"client_method"`
	ClientPath        string            `json:"client_path"`
	OriginalHeaders   map[string]string `json:"original_headers,omitempty"`
	TargetHeaders     map[string]string `json:"target_headers,omitempty"`
	OriginalBodyB64   string            `json:"original_body_b64,omitempty"`
	FilteredBodyB64   string            `json:"filtered_body_b64,omitempty"`
	TargetURL         string            `json:"target_url,omitempty"`
	ConfigName        string            `json:"config_name,omitempty"`
	Channel           string            `json:"channel,omitempty"`
	StatusCode        int               `json:"status_code"`
	ResponseContentB64 string           `json:"response_content_b64,omitempty"`
	DurationMS        int64             `json:"duration_ms"`
	Blocked           bool              `json:"blocked"`
	BlockedBy         string            `json:"blocked_by,omitempty"`
	BlockedReason     string            `json:"blocked_reason,omitempty"`
	Usage             usage.UsageTotals `json:"usage"`
}

// MaxBodyBytes is the size threshold beyond which a body is truncated
// before logging.
const MaxBodyBytes = 1 << 20 // 1 MB

// TruncationSentinel is appended to a body that was cut for exceeding
// MaxBodyBytes.
const TruncationSentinel = "...[truncated]"

// TruncateBody returns body unchanged if it is at or under MaxBodyBytes,
// otherwise a MaxBodyBytes-sized prefix with TruncationSentinel appended.
func TruncateBody(body []byte) []byte {
	if len(body) <= MaxBodyBytes {
		return body
	}
	out := make([]byte, 0, MaxBodyBytes+len(TruncationSentinel))
	out = append(out, body[:MaxBodyBytes]...)
	out = append(out, TruncationSentinel...)
	return out
}
