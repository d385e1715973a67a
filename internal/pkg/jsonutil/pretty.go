// Package jsonutil formats raw JSON documents for logs.
package jsonutil

import (
	"bytes"
	"encoding/json"
)

// Pretty indents a JSON document, keeping key order and number text as
// received. Input that is not valid JSON comes back trimmed and unchanged.
func Pretty(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
