package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvStrict expands environment variables in s.
//
// Semantics:
//   - `${VAR}` is replaced by the value of VAR. A missing VAR is an error.
//   - `${VAR:-default}` falls back to default when VAR is unset or empty.
//   - `$$` emits a literal `$`.
//   - A bare `$VAR` is left untouched.
func ExpandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00INTERCEPTOPS_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	var missing []string
	s = envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := m[1], m[2] != "", m[3]

		val, ok := os.LookupEnv(name)
		switch {
		case ok && val != "":
			return val
		case hasDefault:
			return def
		case ok:
			return val
		default:
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			return match
		}
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(s, dollarSentinel, "$"), nil
}
