package cli

import (
	"fmt"
	"maps"
	"strings"
)

// parseDefines merges -D values over base. "name=value" sets a string;
// a bare "name" sets "true".
func parseDefines(base map[string]string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(values))
	maps.Copy(out, base)
	for _, v := range values {
		name, value, found := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, &ExitError{Code: ExitBadDefine, Message: fmt.Sprintf("invalid define %q: expected name=value", v)}
		}
		if !found {
			value = "true"
		}
		out[name] = value
	}
	return out, nil
}
