package loadbalancer

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"clp/pkg/configstore"
)

// LoadBalancer picks ordered candidate lists per service and tracks
// failure counters, exclusions, and cooldown resets. All operations for a
// given service run under the package-wide mutex; the critical section
// also covers persisting mutated state to disk, so a successful call
// always leaves the file consistent with memory.
type LoadBalancer struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	sig    signature
	loaded bool
	cfg    *Config
}

type signature struct {
	mtimeNS int64
	size    int64
}

// NewLoadBalancer creates a LoadBalancer backed by the given
// data/lb_config.json path.
func NewLoadBalancer(path string, logger *slog.Logger) *LoadBalancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadBalancer{path: path, logger: logger}
}

// reloadLocked re-reads the backing file if its signature changed since
// the in-memory copy was last loaded. Caller must hold mu.
func (lb *LoadBalancer) reloadLocked() error {
	info, err := os.Stat(lb.path)
	if err != nil {
		if os.IsNotExist(err) {
			if !lb.loaded {
				lb.cfg = &Config{Mode: ModeActiveFirst, PerService: map[string]*ServiceState{}}
				lb.loaded = true
			}
			return nil
		}
		return err
	}

	sig := signature{mtimeNS: info.ModTime().UnixNano(), size: info.Size()}
	if lb.loaded && sig == lb.sig {
		return nil
	}

	data, err := os.ReadFile(lb.path)
	if err != nil {
		return err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	if cfg.PerService == nil {
		cfg.PerService = map[string]*ServiceState{}
	}
	lb.cfg = &cfg
	lb.sig = sig
	lb.loaded = true
	return nil
}

func (lb *LoadBalancer) stateLocked(service string) *ServiceState {
	state, ok := lb.cfg.PerService[service]
	if !ok {
		state = newServiceState(lb.cfg.Options.FailureThreshold)
		lb.cfg.PerService[service] = state
	}
	if state.CurrentFailures == nil {
		state.CurrentFailures = make(map[string]int)
	}
	if state.FailureThreshold == 0 {
		state.FailureThreshold = lb.cfg.Options.FailureThreshold
	}
	return state
}

func (lb *LoadBalancer) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(lb.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(lb.cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(lb.path), ".tmp-lb-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, lb.path); err != nil {
		return err
	}
	info, err := os.Stat(lb.path)
	if err == nil {
		lb.sig = signature{mtimeNS: info.ModTime().UnixNano(), size: info.Size()}
	}
	return nil
}

// Pick returns the ordered list of candidates for service given the
// currently configured (non-deleted) upstream configs. active-first
// returns at most one config (the active one); weight-based returns every
// eligible config ordered by descending weight, ties broken
// lexicographically by name.
func (lb *LoadBalancer) Pick(service string, configs map[string]*configstore.UpstreamConfig) ([]*configstore.UpstreamConfig, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := lb.reloadLocked(); err != nil {
		return nil, err
	}

	switch lb.cfg.Mode {
	case ModeWeightBased:
		state := lb.stateLocked(service)
		var candidates []*configstore.UpstreamConfig
		for _, cfg := range configs {
			if cfg.Deleted || state.isExcluded(cfg.Name) {
				continue
			}
			candidates = append(candidates, cfg)
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Weight != candidates[j].Weight {
				return candidates[i].Weight > candidates[j].Weight
			}
			return candidates[i].Name < candidates[j].Name
		})
		return candidates, nil

	default: // active-first
		for _, cfg := range configs {
			if !cfg.Deleted && cfg.Active {
				return []*configstore.UpstreamConfig{cfg}, nil
			}
		}
		return nil, nil
	}
}

// OnSuccess clears the failure count and exclusion for a config that just
// served a request successfully.
func (lb *LoadBalancer) OnSuccess(service, name string) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := lb.reloadLocked(); err != nil {
		return err
	}
	state := lb.stateLocked(service)
	state.CurrentFailures[name] = 0
	state.unexclude(name)
	return lb.persistLocked()
}

// OnFailure increments a config's failure count and, once it reaches the
// failure threshold, adds it to the exclusion list. Returns true if this
// call caused the config to become newly excluded (the engine uses this to
// decide whether to emit an lb_switch event).
func (lb *LoadBalancer) OnFailure(service, name string) (excludedNow bool, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := lb.reloadLocked(); err != nil {
		return false, err
	}
	state := lb.stateLocked(service)

	wasExcluded := state.isExcluded(name)
	state.CurrentFailures[name]++

	threshold := state.FailureThreshold
	if threshold <= 0 {
		threshold = 1
	}
	if state.CurrentFailures[name] >= threshold && !wasExcluded {
		state.exclude(name)
		excludedNow = true
	}

	if err := lb.persistLocked(); err != nil {
		return excludedNow, err
	}
	return excludedNow, nil
}

// MaybeReset is called when the first pass exhausts all candidates for a
// service. If auto-reset-on-all-failed is disabled, or the reset cooldown
// has not elapsed, it is a no-op returning false. Otherwise it clears all
// failure state and exclusions for the service, stamps the reset time, and
// returns true.
func (lb *LoadBalancer) MaybeReset(service string) (reset bool, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := lb.reloadLocked(); err != nil {
		return false, err
	}
	if !lb.cfg.Options.AutoResetOnAllFailed {
		return false, nil
	}

	state := lb.stateLocked(service)
	now := time.Now()
	cooldown := time.Duration(lb.cfg.Options.ResetCooldownSeconds) * time.Second
	if state.LastResetAt != nil && now.Sub(*state.LastResetAt) < cooldown {
		return false, nil
	}

	state.CurrentFailures = make(map[string]int)
	state.ExcludedConfigs = nil
	state.LastResetAt = &now

	if err := lb.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Mode returns the currently loaded balancing mode, reloading from disk
// first if the file changed.
func (lb *LoadBalancer) Mode() (Mode, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if err := lb.reloadLocked(); err != nil {
		return "", err
	}
	return lb.cfg.Mode, nil
}

// Options returns the currently loaded balancing options, reloading from
// disk first if the file changed. Used by callers that need the failure
// threshold or cooldown window to annotate lb_switch/lb_exhausted events.
func (lb *LoadBalancer) Options() (Options, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if err := lb.reloadLocked(); err != nil {
		return Options{}, err
	}
	return lb.cfg.Options, nil
}

// CooldownRemaining returns how many seconds remain before MaybeReset may
// succeed again for service, or zero if a reset is currently permitted.
func (lb *LoadBalancer) CooldownRemaining(service string) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if err := lb.reloadLocked(); err != nil {
		return 0, err
	}
	state := lb.stateLocked(service)
	if state.LastResetAt == nil {
		return 0, nil
	}
	cooldown := time.Duration(lb.cfg.Options.ResetCooldownSeconds) * time.Second
	remaining := cooldown - time.Since(*state.LastResetAt)
	if remaining <= 0 {
		return 0, nil
	}
	return int(remaining.Seconds()), nil
}
