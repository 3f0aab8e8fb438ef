package validation

import (
	"net/url"
	"regexp"
	"strings"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: profile, profile:read, email:read:e2e123, a, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidScopeNames valida cada token del slice. Retorna el primer token inválido.
func ValidScopeNames(names []string) (string, bool) {
	for _, n := range names {
		if !ValidScopeName(n) {
			return n, false
		}
	}
	return "", true
}

// Resource indicator rules (RFC 8707): an absolute URI without fragment.
// Se acepta cualquier scheme (https://api.example.com, urn:example:api);
// lo que se rechaza es ruido que rompería el particionado por resource:
// strings vacíos, con espacios, relativos o con fragment.
const maxResourceLen = 512

// ValidResourceIndicator returns true si el indicator es un URI absoluto sin fragment.
func ValidResourceIndicator(res string) bool {
	if res == "" || len(res) > maxResourceLen {
		return false
	}
	if strings.ContainsAny(res, " \t\r\n") {
		return false
	}
	u, err := url.Parse(res)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Fragment == ""
}
