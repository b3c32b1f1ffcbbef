package export

import (
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
)

// Domains serializes hostnames as newline-delimited text.
func Domains(hosts []string) string {
	if len(hosts) == 0 {
		return ""
	}
	return strings.Join(hosts, "\n") + "\n"
}

// ParseDomains reads newline-delimited hostnames. Lines are trimmed and
// blank lines dropped; normalization and de-duplication happen on merge.
func ParseDomains(text string) []string {
	var hosts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hosts = append(hosts, line)
	}
	return hosts
}

// WriteFile replaces path with content atomically.
func WriteFile(path, content string) error {
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
