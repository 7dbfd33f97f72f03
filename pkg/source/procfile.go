package source

import (
	"bufio"
	"io"
	"strings"
)

// ParseProcfile returns the process types declared in a Procfile, in declaration order.
// Blank lines, comments and lines without a "name: command" shape are skipped.
func ParseProcfile(r io.Reader) ([]string, error) {
	roles := make([]string, 0)
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		name, command, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if len(name) == 0 || len(strings.TrimSpace(command)) == 0 || strings.ContainsAny(name, " \t") {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		roles = append(roles, name)
	}

	return roles, scanner.Err()
}
