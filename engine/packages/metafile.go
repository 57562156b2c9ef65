package packages

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// parseKeyValue reads loose authoring metadata: one "key = value" pair per
// line, '#' comments and blank lines ignored. Later keys override earlier ones.
func parseKeyValue(r io.Reader) (map[string]string, error) {
	scanner := bufio.NewScanner(r)
	keys := make(map[string]string)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if strings.HasPrefix(text, "#") || text == "" {
			continue
		}

		// Split key-value pairs by the first "=" sign
		parts := strings.SplitN(text, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: expected key = value, got %q", line, text)
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", line)
		}
		keys[key] = strings.Trim(strings.TrimSpace(parts[1]), `"`)
	}
	return keys, scanner.Err()
}
