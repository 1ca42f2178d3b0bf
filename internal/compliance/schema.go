package compliance

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// policyDocumentSchema is the JSON Schema a raw policy document (as read
// off disk by the server's policy-directory loader) must satisfy before it
// is decoded into a Policy. This is the InvalidInput enforcement boundary
// from §7: the core rejects malformed input before it ever reaches
// Compiler.Compile.
const policyDocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["policy_id", "version", "statements"],
  "properties": {
    "policy_id": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "metadata": {"type": "object"},
    "statements": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["sid", "effect", "actions", "resources"],
        "properties": {
          "sid": {"type": "string", "minLength": 1},
          "effect": {"type": "string", "enum": ["Allow", "Deny"]},
          "actions": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "resources": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "principals": {"type": "array", "items": {"type": "string"}},
          "conditions": {"type": "object"}
        }
      }
    }
  }
}`

// SchemaValidator validates raw policy documents against policyDocumentSchema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the embedded policy-document schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("policy.schema.json", bytes.NewReader([]byte(policyDocumentSchema))); err != nil {
		return nil, fmt.Errorf("add policy schema resource: %w", err)
	}
	schema, err := compiler.Compile("policy.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile policy schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// ValidateDocument checks raw (JSON-compatible, e.g. YAML-decoded-to-map)
// against the policy document schema, returning ErrInvalidInput wrapping
// the schema validator's detail on failure.
func (v *SchemaValidator) ValidateDocument(raw interface{}) error {
	// jsonschema validates against json.Unmarshal-shaped values; round-trip
	// through JSON to normalize YAML-decoded map[interface{}]interface{}
	// and numeric types into the shapes the validator expects.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// PolicyFromDocument decodes a schema-valid document map into a Policy.
func PolicyFromDocument(doc map[string]interface{}) (Policy, error) {
	p := Policy{
		PolicyID: stringField(doc, "policy_id"),
		Version:  stringField(doc, "version"),
		Name:     stringField(doc, "name"),
	}
	if md, ok := doc["metadata"].(map[string]interface{}); ok {
		p.Metadata = md
	}
	rawStatements, _ := doc["statements"].([]interface{})
	for _, rs := range rawStatements {
		sm, ok := rs.(map[string]interface{})
		if !ok {
			continue
		}
		stmt := PolicyStatement{
			Sid:        stringField(sm, "sid"),
			Effect:     PolicyEffect(stringField(sm, "effect")),
			Actions:    stringSliceField(sm, "actions"),
			Resources:  stringSliceField(sm, "resources"),
			Principals: stringSliceField(sm, "principals"),
		}
		if cond, ok := sm["conditions"].(map[string]interface{}); ok {
			stmt.Conditions = cond
		}
		p.Statements = append(p.Statements, stmt)
	}
	if err := p.validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringSliceField(m map[string]interface{}, key string) []string {
	raw, _ := m[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
