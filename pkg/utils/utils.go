// Package utils holds helpers shared by the config and provider packages.
package utils

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaOption adjusts a generated schema before it is encoded.
type SchemaOption func(*jsonschema.Schema)

// WithTitle sets the schema title.
func WithTitle(title string) SchemaOption {
	return func(s *jsonschema.Schema) { s.Title = title }
}

// WithID sets the schema $id.
func WithID(id string) SchemaOption {
	return func(s *jsonschema.Schema) { s.ID = jsonschema.ID(id) }
}

// GetSchemaFromConfig returns the JSON schema of a config struct with every
// nested type inlined, so editors can validate YAML files without resolving
// references.
func GetSchemaFromConfig(config any, opts ...SchemaOption) (string, error) {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(config)

	for _, opt := range opts {
		opt(schema)
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
