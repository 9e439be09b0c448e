package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator compiles and caches per-kind JSON schemas from the
// ontology, validating agent-produced payloads against them (spec §4.5
// step 1). Compilation is lazy and memoized since most kinds are
// validated many times across retries within one iteration.
type SchemaValidator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator returns an empty, ready-to-use validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{compiled: map[string]*jsonschema.Schema{}}
}

// Validate checks payload against kind's raw JSON schema. A nil/empty
// schema means the kind has no schema (spec §4.5: "if target kind T has a
// schema, validate payload against it") — such kinds always pass.
func (v *SchemaValidator) Validate(kind string, schema json.RawMessage, payload []byte) error {
	if len(schema) == 0 {
		return nil
	}

	compiled, err := v.compile(kind, schema)
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", kind, err)
	}

	var instance any
	if err := json.Unmarshal(payload, &instance); err != nil {
		return NewSchemaViolationError(kind, fmt.Sprintf("payload is not valid JSON: %v", err))
	}

	if err := compiled.Validate(instance); err != nil {
		return NewSchemaViolationError(kind, err.Error())
	}

	return nil
}

func (v *SchemaValidator) compile(kind string, schema json.RawMessage) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[kind]; ok {
		return s, nil
	}

	decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	resourceName := kind + ".schema.json"
	if err := compiler.AddResource(resourceName, decoded); err != nil {
		return nil, err
	}

	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, err
	}

	v.compiled[kind] = compiled
	return compiled, nil
}
