package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printProperties renders v as a two column table of dotted JSON paths.
// Credential values are masked.
func printProperties(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}

	rows := map[string]string{}
	flatten("", tree, rows)

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	for _, k := range keys {
		table.Append([]string{k, rows[k]})
	}
	return table.Render()
}

func flatten(prefix string, v any, rows map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, rows)
		}
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		rows[prefix] = strings.Join(parts, ", ")
	case nil:
		rows[prefix] = ""
	default:
		s := fmt.Sprint(t)
		if isSecret(prefix) && s != "" {
			s = mask(s)
		}
		rows[prefix] = s
	}
}

func isSecret(path string) bool {
	if !strings.HasPrefix(path, "apiKeys.") {
		return false
	}
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, "key") || strings.HasSuffix(lower, "secret")
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
