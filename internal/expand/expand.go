// Package expand resolves ${env.NAME} references in configuration text.
package expand

import (
	"os"
	"strings"
)

const envPrefix = "${env."

// LookupFunc resolves an environment variable. Override in tests.
var LookupFunc = os.Getenv

// Env replaces every ${env.NAME} with the value of NAME; unset variables
// expand to "". A reference whose name holds anything but letters, digits or
// '_' is kept literally, as is an unterminated one.
func Env(value string) string {
	if !strings.Contains(value, envPrefix) {
		return value
	}
	var out strings.Builder
	for {
		start := strings.Index(value, envPrefix)
		if start < 0 {
			out.WriteString(value)
			return out.String()
		}
		out.WriteString(value[:start])
		rest := value[start+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			out.WriteString(value[start:])
			return out.String()
		}
		name := rest[:end]
		if !isName(name) {
			out.WriteString(envPrefix)
			value = rest
			continue
		}
		out.WriteString(LookupFunc(name))
		value = rest[end+1:]
	}
}

func isName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
