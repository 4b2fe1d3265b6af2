// Package loadbalancer tracks per-service failure counters, exclusion
// lists, and cooldown timestamps, and produces an ordered list of
// candidate upstream configs for the Engine to try.
//
// State is persisted to data/lb_config.json after every mutation
// (Pick never mutates; OnSuccess, OnFailure, and MaybeReset do). The file
// is re-read if its signature changed since the in-memory copy was last
// loaded, so an external edit (or another process sharing the store
// directory) is picked up before the next mutation.
package loadbalancer
