package config

import (
	"encoding/json"
	"fmt"
	"os"

	"monfill/internal/snapshot"

	"github.com/google/jsonschema-go/jsonschema"
)

// LayoutSchema returns the JSON Schema of the layout file.
func LayoutSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[snapshot.Layout](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to derive layout schema: %w", err)
	}
	schema.Title = "monfill layout"
	schema.Description = "Location of the measurement table and the band/axis of each slot column."

	minOne := 1.0
	for _, key := range []string{"first_row", "row_count"} {
		if p := schema.Properties[key]; p != nil {
			p.Minimum = &minOne
		}
	}
	if slots := schema.Properties["slots"]; slots != nil {
		minItems := 1
		slots.MinItems = &minItems
		if item := slots.Items; item != nil {
			if band := item.Properties["band"]; band != nil {
				band.Enum = []any{string(snapshot.Change), string(snapshot.Cumulative), string(snapshot.Daily)}
			}
			if axis := item.Properties["axis"]; axis != nil {
				axis.Enum = []any{string(snapshot.AxisX), string(snapshot.AxisY), string(snapshot.AxisZ)}
			}
		}
	}
	return schema, nil
}

// ParseLayout validates data against the layout schema and decodes it.
func ParseLayout(data []byte) (snapshot.Layout, error) {
	var layout snapshot.Layout

	schema, err := LayoutSchema()
	if err != nil {
		return layout, err
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return layout, fmt.Errorf("failed to resolve layout schema: %w", err)
	}

	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		return layout, fmt.Errorf("layout is not valid JSON: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return layout, fmt.Errorf("layout does not match schema: %w", err)
	}

	if err := json.Unmarshal(data, &layout); err != nil {
		return layout, fmt.Errorf("failed to decode layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return layout, err
	}
	return layout, nil
}

// LoadLayout reads and validates a layout file.
func LoadLayout(path string) (snapshot.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot.Layout{}, fmt.Errorf("failed to read layout file: %w", err)
	}
	layout, err := ParseLayout(data)
	if err != nil {
		return snapshot.Layout{}, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}
