package engine

import (
	"os"
	"strings"
)

// resolveCredential resolves a credential value of the form
// "${env:NAME}" or "${file:/path}" per spec §4.17. This addressing
// convention (literal environment variable name / literal absolute file
// path inside the braces) is distinct from pkg/security/secrets'
// "${secret:name}" references, which look the name up through a chain of
// named providers — so it is handled here with a small dedicated resolver
// rather than routed through that manager. Resolution failure logs a
// warning and falls back to the literal value, consistent with "nothing
// is fatal" in spec §7.
func resolveCredential(value string) (resolved string, warning string) {
	switch {
	case strings.HasPrefix(value, "${env:") && strings.HasSuffix(value, "}"):
		name := value[len("${env:") : len(value)-1]
		v, ok := os.LookupEnv(name)
		if !ok {
			return value, "credential env var not set: " + name
		}
		return v, ""

	case strings.HasPrefix(value, "${file:") && strings.HasSuffix(value, "}"):
		path := value[len("${file:") : len(value)-1]
		data, err := os.ReadFile(path)
		if err != nil {
			return value, "credential file unreadable: " + path
		}
		return strings.TrimSpace(string(data)), ""

	default:
		return value, ""
	}
}
