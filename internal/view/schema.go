package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// defaultSchema derives the payload contract from the definition: the
// container type and object records. Required columns are checked by the
// shaper, which resolves aliases and letter case the way cells do.
func defaultSchema(def Definition) map[string]any {
	record := map[string]any{"type": "object"}
	if def.Payload == PayloadObject {
		return record
	}
	return map[string]any{
		"type":  "array",
		"items": record,
	}
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

// Validate checks body against the view's payload schema.
func (d Definition) Validate(body []byte) error {
	if d.schemaCompiled == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return malformed("%s: %v", d.Endpoint, err)
	}
	if err := d.schemaCompiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, d.Endpoint, err)
	}
	return nil
}
