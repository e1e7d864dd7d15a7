package doctype

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

// SchemaDocument renders the JSON Schema of one tool's version record.
// Known fields are typed; unknown fields are allowed so older records and
// UI-only keys survive.
func SchemaDocument(spec Spec) map[string]any {
	names := make([]string, 0, len(spec.Fields))
	for name := range spec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	properties := make(map[string]any, len(names))
	for _, name := range names {
		properties[name] = fieldSchema(spec.Fields[name])
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                spec.Title,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}
}

func fieldSchema(fieldType FieldType) map[string]any {
	switch fieldType {
	case FieldList:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case FieldArray:
		return map[string]any{"type": "array"}
	case FieldObject:
		return map[string]any{"type": "object"}
	case FieldNumber:
		return map[string]any{"type": "number"}
	case FieldBoolean:
		return map[string]any{"type": "boolean"}
	default:
		return map[string]any{"type": "string"}
	}
}

func compileSchemas() {
	compiled := make(map[string]*jsonschema.Schema, len(specs))
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	for _, spec := range specs {
		url := "frameline://doctype/" + spec.Key + ".json"
		payload, err := json.Marshal(SchemaDocument(spec))
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema %s: %w", spec.Key, err)
			return
		}
		if err := compiler.AddResource(url, bytes.NewReader(payload)); err != nil {
			schemaErr = fmt.Errorf("add schema %s: %w", spec.Key, err)
			return
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("compile schema %s: %w", spec.Key, err)
			return
		}
		compiled[spec.Key] = schema
	}
	schemas = compiled
}

// Validate checks one version record against its tool's schema. Unknown
// tool keys are not validated.
func Validate(key string, record map[string]any) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	schema, ok := schemas[key]
	if !ok {
		return nil
	}
	if err := schema.Validate(toJSONValue(record)); err != nil {
		return fmt.Errorf("%s record: %w", key, err)
	}
	return nil
}

// toJSONValue normalises Go values into the shapes encoding/json produces,
// which is what the validator expects.
func toJSONValue(record map[string]any) any {
	payload, err := json.Marshal(record)
	if err != nil {
		return record
	}
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return record
	}
	return value
}
