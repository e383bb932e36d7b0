// Tencent is pleased to support the open source community by making trpc-qbit-mcp available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-qbit-mcp is licensed under the Apache License Version 2.0.

package mcp

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// ToolOption configures a Tool.
type ToolOption func(*Tool)

// property is an input property under construction.
type property struct {
	schema   *openapi3.Schema
	required bool
}

// PropertyOption configures one input property.
type PropertyOption func(*property)

// NewTool creates a tool with an empty object input schema.
func NewTool(name string, opts ...ToolOption) *Tool {
	schema := openapi3.NewObjectSchema()
	schema.Required = []string{}

	tool := &Tool{
		Name:        name,
		InputSchema: schema,
	}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

// WithDescription sets the tool description.
func WithDescription(description string) ToolOption {
	return func(t *Tool) {
		t.Description = description
	}
}

// WithString adds a string property.
func WithString(name string, opts ...PropertyOption) ToolOption {
	return withProperty(name, openapi3.NewStringSchema(), opts)
}

// WithNumber adds a number property.
func WithNumber(name string, opts ...PropertyOption) ToolOption {
	return withProperty(name, openapi3.NewFloat64Schema(), opts)
}

// WithInteger adds an integer property.
func WithInteger(name string, opts ...PropertyOption) ToolOption {
	return withProperty(name, openapi3.NewIntegerSchema(), opts)
}

// WithBoolean adds a boolean property.
func WithBoolean(name string, opts ...PropertyOption) ToolOption {
	return withProperty(name, openapi3.NewBoolSchema(), opts)
}

// WithStringArray adds an array-of-strings property.
func WithStringArray(name string, opts ...PropertyOption) ToolOption {
	return withProperty(name, openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()), opts)
}

// WithObject adds a free-form object property.
func WithObject(name string, opts ...PropertyOption) ToolOption {
	return withProperty(name, openapi3.NewObjectSchema(), opts)
}

func withProperty(name string, schema *openapi3.Schema, opts []PropertyOption) ToolOption {
	return func(t *Tool) {
		prop := &property{schema: schema}
		for _, opt := range opts {
			opt(prop)
		}
		t.InputSchema.Properties[name] = openapi3.NewSchemaRef("", schema)
		if prop.required {
			t.InputSchema.Required = append(t.InputSchema.Required, name)
		}
	}
}

// Required marks the property as required.
func Required() PropertyOption {
	return func(p *property) {
		p.required = true
	}
}

// Description sets the property description.
func Description(description string) PropertyOption {
	return func(p *property) {
		p.schema.Description = description
	}
}

// Default sets the property default.
func Default(value interface{}) PropertyOption {
	return func(p *property) {
		p.schema.Default = value
	}
}

// Enum restricts the property to the given values. On an array property
// it restricts the items.
func Enum(values ...interface{}) PropertyOption {
	return func(p *property) {
		if p.schema.Items != nil && p.schema.Items.Value != nil {
			p.schema.Items.Value.Enum = values
			return
		}
		p.schema.Enum = values
	}
}

// Min sets the inclusive minimum of a numeric property.
func Min(value float64) PropertyOption {
	return func(p *property) {
		p.schema.Min = &value
	}
}

// Max sets the inclusive maximum of a numeric property.
func Max(value float64) PropertyOption {
	return func(p *property) {
		p.schema.Max = &value
	}
}

// MinItems sets the minimum length of an array property.
func MinItems(n uint64) PropertyOption {
	return func(p *property) {
		p.schema.MinItems = n
	}
}
