// redact.go: sensitive-value masking for safe logging.
//
// Session keys (Authentication blob entity) and device ids must never be
// written to logs in cleartext. Call before passing values to any log field.
package logging

import "strings"

// RedactSessionKey masks an upstream session key or auth token for logging.
// Shows the first 8 characters followed by "..." to allow correlation across
// log lines without exposing the credential.
func RedactSessionKey(key string) string {
	if len(key) == 0 {
		return "[empty]"
	}
	if len(key) <= 8 {
		return key[:1] + "..."
	}
	return key[:8] + "..."
}

// credentialDenyList is the case-insensitive set of field-name substrings
// whose values are replaced with "[REDACTED]" by Fields.
var credentialDenyList = []string{
	"session_key", "token", "secret", "auth", "password", "credential",
}

// Fields redacts any value in m whose key matches the credential deny list.
// Used before logging free-form field maps (e.g. raw ingester payload
// excerpts) so a provider's opaque session token can't leak into logs.
func Fields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isCredentialKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

func isCredentialKey(key string) bool {
	lower := strings.ToLower(key)
	for _, deny := range credentialDenyList {
		if strings.Contains(lower, deny) {
			return true
		}
	}
	return false
}
