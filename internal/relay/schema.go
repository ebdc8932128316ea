// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// FrameSchemaID is the $id of the inbound frame schema.
const FrameSchemaID = "https://holomush.dev/schemas/roomrelay-frame.schema.json"

// GenerateFrameSchema generates the JSON Schema every inbound frame must satisfy.
func GenerateFrameSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(&inboundFrame{})
	schema.ID = jsonschema.ID(FrameSchemaID)
	schema.Title = "roomrelay inbound frame"
	schema.Description = "Client-to-server WebSocket frame"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

var compiledFrameSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	schemaBytes, err := GenerateFrameSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("frame.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile("frame.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
})

// validateFrame checks raw against the inbound frame schema.
func validateFrame(raw []byte) error {
	raw, err := trimFrame(raw)
	if err != nil {
		return err
	}

	sch, err := compiledFrameSchema()
	if err != nil {
		return err
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
