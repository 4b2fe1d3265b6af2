package filters

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"clp/pkg/configstore"
)

// EndpointRule blocks requests matching a service, method, path, and
// optional query constraints.
type EndpointRule struct {
	ID       string            `json:"id,omitempty"`
	Services []string          `json:"services"`
	Methods  []string          `json:"methods"`
	Match    MatchSpec         `json:"match"`
	Query    map[string]string `json:"query,omitempty"`
	Action   BlockAction       `json:"action"`
}

// MatchSpec describes how Value is matched against the request path.
type MatchSpec struct {
	Type  string `json:"type"` // "path", "prefix", "regex"
	Value string `json:"value"`
}

// BlockAction is the synthetic response returned for a matched rule.
type BlockAction struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// endpointFilterFile is the on-disk shape of endpoint_filter.json.
type endpointFilterFile struct {
	Enabled bool           `json:"enabled"`
	Rules   []EndpointRule `json:"rules"`
}

// BlockMatch reports a matched rule's id and synthetic response.
type BlockMatch struct {
	RuleID  string
	Status  int
	Message string
}

// compiledRule carries an already-compiled regex for match.type="regex",
// or nil if the rule didn't need one or its pattern failed to compile.
type compiledRule struct {
	EndpointRule
	regex *regexp.Regexp
}

type blockerState struct {
	enabled bool
	rules   []compiledRule
}

// Blocker evaluates incoming requests against the Endpoint Blocker's
// ordered rule list, reloaded whenever endpoint_filter.json changes.
type Blocker struct {
	watched *configstore.Watched[*blockerState]
	logger  *slog.Logger
}

// NewBlocker creates a Blocker backed by the given endpoint_filter.json path.
func NewBlocker(path string, logger *slog.Logger) *Blocker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Blocker{logger: logger}
	b.watched = configstore.NewWatched(path, &blockerState{}, b.parse)
	return b
}

func (b *Blocker) parse(data []byte) (*blockerState, error) {
	var file endpointFilterFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	state := &blockerState{enabled: file.Enabled}
	for _, rule := range file.Rules {
		cr := compiledRule{EndpointRule: rule}
		if rule.Match.Type == "regex" {
			re, err := regexp.Compile(rule.Match.Value)
			if err != nil {
				b.logger.Warn("endpoint rule has invalid regex, skipping",
					"rule_id", rule.ID, "pattern", rule.Match.Value, "error", err)
				continue
			}
			cr.regex = re
		}
		state.rules = append(state.rules, cr)
	}
	return state, nil
}

// Evaluate returns the first matching rule for the given request, or nil
// if none match or the blocker is disabled/unloadable.
func (b *Blocker) Evaluate(service, method, path string, query url.Values) *BlockMatch {
	state, err := b.watched.Get()
	if err != nil {
		b.logger.Warn("endpoint filter unreadable, behaving as disabled", "error", err)
		return nil
	}
	if state == nil || !state.enabled {
		return nil
	}

	for _, rule := range state.rules {
		if !matchesRule(rule, service, method, path, query) {
			continue
		}
		return &BlockMatch{RuleID: rule.ID, Status: rule.Action.Status, Message: rule.Action.Message}
	}
	return nil
}

func matchesRule(rule compiledRule, service, method, path string, query url.Values) bool {
	if !containsOrEmpty(rule.Services, service) {
		return false
	}
	if !methodMatches(rule.Methods, method) {
		return false
	}
	if !pathMatches(rule, path) {
		return false
	}
	for key, want := range rule.Query {
		got, present := query[key]
		if !present || len(got) == 0 {
			return false
		}
		if want != "*" && got[0] != want {
			return false
		}
	}
	return true
}

func containsOrEmpty(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func methodMatches(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == "*" || strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func pathMatches(rule compiledRule, path string) bool {
	switch rule.Match.Type {
	case "prefix":
		return strings.HasPrefix(path, rule.Match.Value)
	case "regex":
		return rule.regex != nil && rule.regex.MatchString(path)
	default: // "path" (exact)
		return path == rule.Match.Value
	}
}
