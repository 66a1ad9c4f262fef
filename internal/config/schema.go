// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package config

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the config JSON Schema.
const SchemaID = "https://classgate.dev/schemas/config.schema.json"

const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var (
	compiledOnce sync.Once
	compiled     *jschema.Schema
	compileErr   error
)

// GenerateSchema reflects Config into a JSON Schema document.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		FieldNameTag:               "koanf",
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeFor[time.Duration]() {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     durationPattern,
					Description: "Go duration such as 30s or 5m",
				}
			}
			return nil
		},
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "ClassGate Configuration"
	schema.Description = "Schema for classgate YAML config files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

func compiledSchema() (*jschema.Schema, error) {
	compiledOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			compileErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource(SchemaID, doc); err != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}
		compiled, compileErr = c.Compile(SchemaID)
		if compileErr != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(compileErr)
		}
	})
	return compiled, compileErr
}

// ValidateYAML checks a YAML config document against the schema.
func ValidateYAML(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code("CONFIG_EMPTY").Errorf("config file is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	// Round-trip through JSON so numbers reach the validator as json.Number.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").Wrap(err)
	}
	return nil
}
