// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package schema derives JSON schemas from the yaml and docdesc tags of
// configuration structs.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// Draft is the JSON schema dialect of generated documents.
const Draft = "https://json-schema.org/draft/2020-12/schema"

var (
	// ErrNotStruct is returned when the root value is not a struct.
	ErrNotStruct = errors.New("expected struct type")
	// ErrWriteSchema is returned when the schema cannot be written.
	ErrWriteSchema = errors.New("failed to write schema")
)

// Field describes one property of an object.
type Field struct {
	Name        string `json:"-"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"-"`
	// Items describes the elements of an array.
	Items *Field `json:"items,omitempty"`
	// Object holds the properties of a nested struct.
	Object *Schema `json:"-"`
	// Values describes the values of a map.
	Values *Field `json:"additionalProperties,omitempty"`
}

// Schema describes an object.
type Schema struct {
	Title       string
	Description string
	Fields      []Field
}

// Generate builds the schema of the struct type of v.
func Generate(v any, title, description string) (*Schema, error) {
	s, err := objectSchema(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}

	s.Title = title
	s.Description = description

	return s, nil
}

func objectSchema(t reflect.Type) (*Schema, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %v", ErrNotStruct, t)
	}

	s := &Schema{}

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		f, err := fieldOf(sf)
		if err != nil {
			return nil, err
		}

		if f != nil {
			s.Fields = append(s.Fields, *f)
		}
	}

	return s, nil
}

// fieldOf converts a struct field. Fields tagged yaml:"-" are skipped and
// fields without omitempty are required.
func fieldOf(sf reflect.StructField) (*Field, error) {
	tag := sf.Tag.Get("yaml")
	if tag == "-" {
		return nil, nil //nolint:nilnil
	}

	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = strings.ToLower(sf.Name)
	}

	f, err := typeField(sf.Type)
	if err != nil {
		return nil, err
	}

	f.Name = name
	f.Description = sf.Tag.Get("docdesc")
	f.Required = !strings.Contains(opts, "omitempty")

	return f, nil
}

func typeField(t reflect.Type) (*Field, error) {
	switch t.Kind() {
	case reflect.Ptr:
		return typeField(t.Elem())
	case reflect.String:
		return &Field{Type: "string"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Field{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &Field{Type: "number"}, nil
	case reflect.Bool:
		return &Field{Type: "boolean"}, nil
	case reflect.Slice, reflect.Array:
		items, err := typeField(t.Elem())
		if err != nil {
			return nil, err
		}

		return &Field{Type: "array", Items: items}, nil
	case reflect.Map:
		values, err := typeField(t.Elem())
		if err != nil {
			return nil, err
		}

		return &Field{Type: "object", Values: values}, nil
	case reflect.Struct:
		obj, err := objectSchema(t)
		if err != nil {
			return nil, err
		}

		return &Field{Type: "object", Object: obj}, nil
	default:
		return &Field{Type: "string"}, nil
	}
}

// Document renders the schema as a JSON schema document.
func (s *Schema) Document() map[string]any {
	doc := s.object()
	doc["$schema"] = Draft

	if s.Title != "" {
		doc["title"] = s.Title
	}

	if s.Description != "" {
		doc["description"] = s.Description
	}

	return doc
}

func (s *Schema) object() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))

	for _, f := range s.Fields {
		properties[f.Name] = f.property()

		if f.Required {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func (f Field) property() map[string]any {
	if f.Object != nil {
		prop := f.Object.object()
		if f.Description != "" {
			prop["description"] = f.Description
		}

		return prop
	}

	prop := map[string]any{"type": f.Type}

	if f.Description != "" {
		prop["description"] = f.Description
	}

	if f.Items != nil {
		prop["items"] = f.Items.property()
	}

	if f.Values != nil {
		prop["additionalProperties"] = f.Values.property()
	}

	return prop
}

// WriteJSON writes the schema document as indented JSON.
func (s *Schema) WriteJSON(w io.Writer) error {
	b, err := json.MarshalIndent(s.Document(), "", "  ")
	if err != nil {
		return errors.Join(ErrWriteSchema, err)
	}

	if _, err := w.Write(append(b, '\n')); err != nil {
		return errors.Join(ErrWriteSchema, err)
	}

	return nil
}
