package loadbalancer

import "time"

// Mode selects how candidates are ordered.
type Mode string

const (
	ModeActiveFirst Mode = "active-first"
	ModeWeightBased Mode = "weight-based"
)

// Options configures load-balancer behavior, shared across services.
type Options struct {
	AutoResetOnAllFailed  bool `json:"auto_reset_on_all_failed"`
	NotifyEnabled         bool `json:"notify_enabled"`
	ResetCooldownSeconds  int  `json:"reset_cooldown_seconds"`
	FailureThreshold      int  `json:"failure_threshold"` // 1..10
}

// ServiceState is one service's mutable failure/exclusion/cooldown state.
type ServiceState struct {
	FailureThreshold int            `json:"failure_threshold"`
	CurrentFailures  map[string]int `json:"current_failures"`
	ExcludedConfigs  []string       `json:"excluded_configs"`
	LastResetAt      *time.Time     `json:"last_reset_at,omitempty"`
}

func newServiceState(threshold int) *ServiceState {
	return &ServiceState{
		FailureThreshold: threshold,
		CurrentFailures:  make(map[string]int),
	}
}

func (s *ServiceState) isExcluded(name string) bool {
	for _, n := range s.ExcludedConfigs {
		if n == name {
			return true
		}
	}
	return false
}

func (s *ServiceState) exclude(name string) {
	if !s.isExcluded(name) {
		s.ExcludedConfigs = append(s.ExcludedConfigs, name)
	}
}

func (s *ServiceState) unexclude(name string) {
	out := s.ExcludedConfigs[:0]
	for _, n := range s.ExcludedConfigs {
		if n != name {
			out = append(out, n)
		}
	}
	s.ExcludedConfigs = out
}

// Config is the on-disk shape of data/lb_config.json.
type Config struct {
	Mode       Mode                     `json:"mode"`
	Options    Options                  `json:"options"`
	PerService map[string]*ServiceState `json:"per_service"`
}
