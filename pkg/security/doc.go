/*
Package security provides transport security (TLS/mTLS), secret management,
and the pre-engine authentication gate for clp.

# TLS Configuration

Configure TLS for a service listener:

	cfg := &tls.Config{
		Enabled:  true,
		CertFile: "/etc/clp/certs/server.crt",
		KeyFile:  "/etc/clp/certs/server.key",
		MinVersion: "1.3",
	}

	tlsConfig, err := cfg.ToTLSConfig()
	if err != nil {
		log.Fatal(err)
	}

# Secret Management

Load secrets from multiple providers:

	manager := secrets.NewManager([]secrets.SecretProvider{
		secrets.NewEnvProvider("CLP_SECRET_"),
		secrets.NewFileProvider("/var/secrets", true),
	}, cacheConfig)

	upstreamToken, err := manager.GetSecret(ctx, "claude-auth-token")
	if err != nil {
		log.Fatal(err)
	}

# Bearer Token Authentication

Validate bearer tokens in the per-service HTTP gate:

	validator := auth.NewTokenValidator(tokens)
	gate := auth.NewGate("claude", validator, auth.DefaultTokenSources(), true, "/health", "/ping")

	http.Handle("/", gate.Handle(engine))
*/
package security
