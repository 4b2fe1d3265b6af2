// Package configstore owns the per-service upstream configuration files
// under AppConfig.StoreDir (claude.json, codex.json, ...), hot-reloaded by
// file signature rather than at process startup.
//
// # Usage
//
//	store := configstore.NewStore("/home/user/.clp")
//	configs, err := store.Get("claude")
//	err = store.Update("claude", func(m map[string]*configstore.UpstreamConfig) error {
//		m["prod"].Active = true
//		return nil
//	})
//
// Reload policy: on every Get, the backing file is stat'd; if its
// (mtime_ns, size) signature differs from the last load, it is re-read and
// the in-memory snapshot replaced wholesale. A missing file is equivalent
// to an empty map. Update writes through a temp-file-then-rename so readers
// never observe a partially written file.
//
// The Watched helper in watched.go implements the same stat-signature
// technique generically; the Filter, Router, and Load Balancer packages
// each use their own Watched value rather than going through Store, since
// their file shapes differ from UpstreamConfig.
package configstore
