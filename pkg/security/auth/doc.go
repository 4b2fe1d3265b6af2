/*
Package auth provides the pre-engine authentication gate for clp.

Each service listener (claude, codex, ...) wraps its handler chain with a
Gate that validates a bearer token before any request reaches the Proxy
Engine. The gate is disabled by default; when enabled, a request must carry
a registered clp_<base62{32}> token or the gate returns 401.

# Basic Usage

	validator := auth.NewTokenValidator([]*auth.TokenInfo{
		{
			Token:     "clp_4f9c2a1b8e3d7065c1a9b2e4f7d80c35",
			Name:      "laptop",
			Active:    true,
			Services:  []string{"claude"},
			CreatedAt: time.Now(),
		},
	})

	gate := auth.NewGate("claude", validator, auth.DefaultTokenSources(), true, "/health", "/ping")
	http.Handle("/", gate.Handle(engine))

# Token Sources

The gate tries three sources in order, using the first one present:

 1. Authorization: Bearer clp_...
 2. X-API-Key: clp_...
 3. ?token=clp_...

# Retrieving the Authenticated Token

	func handler(w http.ResponseWriter, r *http.Request) {
		info, ok := auth.TokenInfoFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Printf("request from token %s\n", info.Name)
	}

# Bypass Paths

Health and readiness paths are registered with the gate at construction
time and always skip validation, regardless of whether the gate is
enabled.

# Service Scoping

A token's Services field restricts which service listeners will accept it.
An empty Services list means the token is valid for every service.
*/
package auth
