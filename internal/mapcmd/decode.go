package mapcmd

import (
	"encoding/json"
	"fmt"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/validation"
	"mapping-viewer/pkg/registry"
)

// Decoder validates raw commands against the registry schemas, decodes them
// into their variant and fills declared defaults.
type Decoder struct {
	registry *registry.CommandRegistry
	schemas  map[string]*validation.Schema
}

func NewDecoder(reg *registry.CommandRegistry) (*Decoder, error) {
	d := &Decoder{registry: reg, schemas: make(map[string]*validation.Schema, len(reg.Commands))}
	for _, c := range reg.Commands {
		if len(c.Schema) == 0 {
			continue
		}
		s, err := validation.Compile(c.Tag, c.Schema)
		if err != nil {
			return nil, err
		}
		d.schemas[c.Tag] = s
	}
	return d, nil
}

// DefaultDecoder uses the registry compiled into the binary.
func DefaultDecoder() *Decoder {
	d, err := NewDecoder(registry.Default())
	if err != nil {
		panic(fmt.Sprintf("embedded command schemas: %v", err))
	}
	return d
}

// PeekTag returns the command tag of a raw payload, or "" when it has none.
func PeekTag(raw []byte) string {
	var head struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.Command
}

// Decode returns UNKNOWN_COMMAND for tags outside the registry and
// PROTOCOL_VIOLATION for payloads that do not fit their variant.
func (d *Decoder) Decode(raw []byte) (Command, error) {
	tag := PeekTag(raw)
	if tag == "" {
		return nil, apperrors.NewProtocolViolationError("", "payload is not an object with a command tag")
	}
	spec, ok := d.registry.Lookup(tag)
	if !ok {
		return nil, apperrors.NewUnknownCommandError(tag)
	}

	if schema, ok := d.schemas[tag]; ok {
		res, err := schema.ValidateBytes(raw)
		if err != nil {
			return nil, apperrors.NewProtocolViolationError(tag, err.Error())
		}
		if !res.Valid {
			return nil, apperrors.NewProtocolViolationError(tag, res.Summary())
		}
	}

	cmd, err := decodeVariant(tag, raw)
	if err != nil {
		return nil, apperrors.NewProtocolViolationError(tag, err.Error())
	}
	return applyDefaults(cmd, spec), nil
}

func decodeVariant(tag string, raw []byte) (Command, error) {
	switch tag {
	case TagHighlightFeatures:
		var c HighlightFeatures
		err := json.Unmarshal(raw, &c)
		return c, err
	case TagHighlightImage:
		var c HighlightImage
		err := json.Unmarshal(raw, &c)
		return c, err
	case TagShowStatistics:
		var c ShowStatistics
		err := json.Unmarshal(raw, &c)
		return c, err
	case TagClearHighlights:
		return ClearHighlights{}, nil
	case TagShowHeatmap:
		var c ShowHeatmap
		err := json.Unmarshal(raw, &c)
		return c, err
	}
	return nil, fmt.Errorf("no decoder for %s", tag)
}

func applyDefaults(cmd Command, spec registry.Command) Command {
	switch c := cmd.(type) {
	case HighlightFeatures:
		if c.Color == "" {
			c.Color = spec.DefaultString("color")
		}
		return c
	case HighlightImage:
		if c.Color == "" {
			c.Color = spec.DefaultString("color")
		}
		return c
	}
	return cmd
}
