package usage

import "strings"

// UsageTotals holds token-usage counters. All fields are non-negative.
// Display totals for Codex subtract CachedRead from Input and Total; this
// type always stores the raw parsed numbers, never the display-adjusted
// ones — subtraction happens only in UI projections, not here.
type UsageTotals struct {
	Input        int64 `json:"input"`
	CachedCreate int64 `json:"cached_create"`
	CachedRead   int64 `json:"cached_read"`
	Output       int64 `json:"output"`
	Reasoning    int64 `json:"reasoning"`
	Total        int64 `json:"total"`
}

// Dialect applies one parsed event payload to running totals. eventType is
// the SSE "event:" line value, empty for NDJSON/single-JSON framing.
type Dialect interface {
	ApplyEvent(eventType string, payload map[string]any, totals *UsageTotals)
}

// Framing identifies how response bytes are chunked into discrete events.
type Framing int

const (
	// FramingSingleJSON accumulates the whole body and parses once at Finish.
	FramingSingleJSON Framing = iota
	// FramingSSE parses "event:"/"data:" lines, firing on a blank line.
	FramingSSE
	// FramingNDJSON parses one JSON object per newline-delimited line.
	FramingNDJSON
)

// FramingForContentType detects the framing from a response's Content-Type
// header, defaulting to single-JSON for anything unrecognized.
func FramingForContentType(contentType string) Framing {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/event-stream"):
		return FramingSSE
	case strings.Contains(ct, "ndjson"):
		return FramingNDJSON
	default:
		return FramingSingleJSON
	}
}
