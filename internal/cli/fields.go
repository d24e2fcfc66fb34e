package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/raphaelgruber/wikidesk/internal/wiki"
	"gopkg.in/yaml.v3"
)

// parseFields builds a create/update payload from an optional YAML or JSON
// file plus key=value overrides. Values are typed the way YAML types them:
// 3 is a number, true a bool, [a, b] a list.
func parseFields(file string, sets []string) (wiki.Fields, error) {
	fields := wiki.Fields{}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
	}

	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		fields[key] = parseValue(raw)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("nothing to send: use --set key=value or --file")
	}
	return fields, nil
}

// parseValue types a --set value. An empty value stays an empty string;
// null clears the field.
func parseValue(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// parseID parses a numeric record id argument.
func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
