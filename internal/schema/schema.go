// Package schema describes tool inputs and structured LLM replies with the
// small subset of JSON Schema the planning prompt embeds verbatim: type,
// required, properties, enum and items.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is one node of the shape description. It marshals into the
// catalog form the model sees; Validate runs a compiled JSON Schema built
// from the same definition.
type Schema struct {
	Type       string             `json:"type"`
	Required   []string           `json:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
	Items      *Schema            `json:"items,omitempty"`

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// Object builds an object schema from property definitions.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// String returns a string schema, optionally constrained to enum values.
func String(enum ...string) *Schema {
	return &Schema{Type: "string", Enum: enum}
}

// Number returns a number schema.
func Number() *Schema { return &Schema{Type: "number"} }

// Boolean returns a boolean schema.
func Boolean() *Schema { return &Schema{Type: "boolean"} }

// Array returns an array schema with the given item schema.
func Array(items *Schema) *Schema { return &Schema{Type: "array", Items: items} }

// Validate checks a decoded JSON value against the schema. The compiled
// validator is tolerant in two ways models need: unknown object keys are
// allowed, and a null in a non-required property counts as absent.
func (s *Schema) Validate(v interface{}) error {
	s.compileOnce.Do(func() {
		doc, err := json.Marshal(s.compileDoc(false))
		if err != nil {
			s.compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", strings.NewReader(string(doc))); err != nil {
			s.compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		s.compiled, s.compileErr = compiler.Compile("schema.json")
	})
	if s.compileErr != nil {
		return s.compileErr
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// compileDoc renders the node as a plain JSON Schema document. nullable
// widens the type so optional properties may carry an explicit null.
func (s *Schema) compileDoc(nullable bool) map[string]interface{} {
	doc := map[string]interface{}{}
	if nullable {
		doc["type"] = []interface{}{s.Type, "null"}
	} else {
		doc["type"] = s.Type
	}
	switch s.Type {
	case "object":
		props := map[string]interface{}{}
		required := map[string]bool{}
		for _, r := range s.Required {
			required[r] = true
		}
		for name, sub := range s.Properties {
			props[name] = sub.compileDoc(!required[name])
		}
		doc["properties"] = props
		if len(s.Required) > 0 {
			doc["required"] = s.Required
		}
	case "array":
		if s.Items != nil {
			doc["items"] = s.Items.compileDoc(false)
		}
	case "string":
		if len(s.Enum) > 0 {
			enum := make([]interface{}, 0, len(s.Enum)+1)
			for _, e := range s.Enum {
				enum = append(enum, e)
			}
			if nullable {
				enum = append(enum, nil)
			}
			doc["enum"] = enum
		}
	}
	return doc
}
