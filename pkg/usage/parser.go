package usage

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Parser incrementally consumes response chunks and maintains running
// UsageTotals. It is safe to feed chunks of any size, including one byte
// at a time — the result is identical to feeding the whole body at once.
type Parser struct {
	framing Framing
	dialect Dialect
	totals  UsageTotals

	pending []byte // unconsumed bytes since the last line boundary (SSE/NDJSON)
	fullBuf bytes.Buffer // accumulated body (single-JSON framing only)

	sseEventType string
	sseData      []string
}

// NewParser creates a Parser for the given framing and per-service dialect.
func NewParser(framing Framing, dialect Dialect) *Parser {
	return &Parser{framing: framing, dialect: dialect}
}

// Write feeds the next chunk of response bytes into the parser.
func (p *Parser) Write(chunk []byte) {
	switch p.framing {
	case FramingSingleJSON:
		p.fullBuf.Write(chunk)
		return
	default:
		p.pending = append(p.pending, chunk...)
		p.drainLines()
	}
}

// drainLines extracts every complete line from p.pending, leaving any
// trailing partial line buffered for the next Write.
func (p *Parser) drainLines() {
	for {
		idx := bytes.IndexByte(p.pending, '\n')
		if idx < 0 {
			return
		}
		line := p.pending[:idx]
		p.pending = p.pending[idx+1:]
		p.handleLine(strings.TrimRight(string(line), "\r"))
	}
}

func (p *Parser) handleLine(line string) {
	switch p.framing {
	case FramingSSE:
		p.handleSSELine(line)
	case FramingNDJSON:
		p.handleNDJSONLine(line)
	}
}

func (p *Parser) handleSSELine(line string) {
	switch {
	case line == "":
		p.flushSSEEvent()
	case strings.HasPrefix(line, "event:"):
		p.sseEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		p.sseData = append(p.sseData, strings.TrimPrefix(line, "data:"))
	default:
		// ignore id:, retry:, comments
	}
}

func (p *Parser) flushSSEEvent() {
	if len(p.sseData) == 0 {
		p.sseEventType = ""
		return
	}
	assembled := strings.Join(p.sseData, "\n")
	p.applyJSON(p.sseEventType, assembled)
	p.sseEventType = ""
	p.sseData = nil
}

func (p *Parser) handleNDJSONLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed == "[DONE]" {
		return
	}
	p.applyJSON("", trimmed)
}

func (p *Parser) applyJSON(eventType, raw string) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return // malformed fragments are silently dropped
	}
	p.dialect.ApplyEvent(eventType, payload, &p.totals)
}

// Finish flushes any buffered partial event/line and, for single-JSON
// framing, parses the accumulated body. It returns the final totals.
func (p *Parser) Finish() UsageTotals {
	switch p.framing {
	case FramingSSE:
		if len(p.pending) > 0 {
			p.handleSSELine(strings.TrimRight(string(p.pending), "\r"))
			p.pending = nil
		}
		p.flushSSEEvent()
	case FramingNDJSON:
		if len(p.pending) > 0 {
			p.handleNDJSONLine(string(p.pending))
			p.pending = nil
		}
	case FramingSingleJSON:
		if p.fullBuf.Len() > 0 {
			p.applyJSON("", p.fullBuf.String())
		}
	}
	return p.totals
}

// Totals returns the running totals accumulated so far, without finalizing
// the parser (safe to call mid-stream, e.g. for progress events).
func (p *Parser) Totals() UsageTotals {
	return p.totals
}
