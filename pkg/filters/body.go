package filters

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"clp/pkg/configstore"
)

// BodyFilterRule replaces or removes a literal substring in a request body.
type BodyFilterRule struct {
	Source string `json:"source"`
	Op     string `json:"op"` // "replace" or "remove"
	Target string `json:"target,omitempty"`
}

// Validate rejects a "replace" rule with no target, per the load-time
// invariant: replace without target is meaningless.
func (r BodyFilterRule) Validate() error {
	if r.Op == "replace" && r.Target == "" {
		return fmt.Errorf("body filter rule %q: replace requires a target", r.Source)
	}
	if r.Op != "replace" && r.Op != "remove" {
		return fmt.Errorf("body filter rule %q: unknown op %q", r.Source, r.Op)
	}
	return nil
}

// BodyRewriter applies an ordered list of literal substring replacements to
// request bodies, loaded from filter.json.
type BodyRewriter struct {
	watched *configstore.Watched[[]BodyFilterRule]
	logger  *slog.Logger
}

// NewBodyRewriter creates a BodyRewriter backed by the given filter.json path.
func NewBodyRewriter(path string, logger *slog.Logger) *BodyRewriter {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BodyRewriter{logger: logger}
	b.watched = configstore.NewWatched(path, nil, b.parse)
	return b
}

func (b *BodyRewriter) parse(data []byte) ([]BodyFilterRule, error) {
	var rules []BodyFilterRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	var valid []BodyFilterRule
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			b.logger.Warn("skipping invalid body filter rule", "error", err)
			continue
		}
		valid = append(valid, rule)
	}
	return valid, nil
}

// Apply rewrites body according to the configured rules, in order. A body
// that is not valid UTF-8 bypasses the filter untouched. The caller is
// responsible for recomputing Content-Length after a rewrite.
func (b *BodyRewriter) Apply(body []byte) []byte {
	rules, err := b.watched.Get()
	if err != nil {
		b.logger.Warn("body filter unreadable, behaving as disabled", "error", err)
		return body
	}
	if len(rules) == 0 {
		return body
	}
	if !utf8.Valid(body) {
		return body
	}

	text := string(body)
	for _, rule := range rules {
		target := rule.Target
		if rule.Op == "remove" {
			target = ""
		}
		text = strings.ReplaceAll(text, rule.Source, target)
	}
	return []byte(text)
}
