// Package infer provides the inference client used by the live engine.
//
// Two call shapes are supported: free-text completion and structured
// invocation, where the model's output must conform to a JSON schema.
// A schema-violating response is an error at the call site; callers in
// the live path treat any inference error as a silent degradation.
package infer

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// Schema aliases jsonschema.Schema so call sites can build and tweak
// schemas without importing the jsonschema package directly.
type Schema = jsonschema.Schema

// Request is a free-text completion request.
type Request struct {
	System string
	User   string
}

// Call is a structured invocation request. Name and Description label
// the output schema for the model.
type Call struct {
	Name        string
	Description string
	System      string
	User        string
	Schema      *jsonschema.Schema
}

// Client is the interface to an inference service.
type Client interface {
	// Complete returns the model's free-text response.
	Complete(ctx context.Context, req Request) (string, error)

	// Invoke issues a structured call and unmarshals the conforming
	// JSON response into out.
	Invoke(ctx context.Context, call Call, out any) error
}

// SchemaFor derives a JSON schema from a Go type.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	return jsonschema.For[T](nil)
}

// MustSchemaFor is like SchemaFor but panics on error. Intended for
// package-level schema variables.
func MustSchemaFor[T any]() *jsonschema.Schema {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// unmarshalRepair unmarshals JSON data into v, attempting to repair
// malformed JSON. Models occasionally emit trailing commas or unquoted
// keys; a repair pass recovers those instead of dropping the result.
func unmarshalRepair(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return rerr
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
