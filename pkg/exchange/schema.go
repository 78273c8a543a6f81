package exchange

import "github.com/dukex/flowpilot/pkg/models"

// graphSchema describes the structure an imported document must have before any node is decoded.
func graphSchema() map[string]any {
	nodeTypes := make([]any, 0, len(models.NodeTypes))
	for _, nodeType := range models.NodeTypes {
		nodeTypes = append(nodeTypes, string(nodeType))
	}

	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []any{"nodes", "edges"},
		"properties": map[string]any{
			"nodes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"id", "type", "position"},
					"properties": map[string]any{
						"id":   map[string]any{"type": "string", "minLength": 1},
						"type": map[string]any{"type": "string", "enum": nodeTypes},
						"position": map[string]any{
							"type":     "object",
							"required": []any{"x", "y"},
							"properties": map[string]any{
								"x": map[string]any{"type": "number"},
								"y": map[string]any{"type": "number"},
							},
						},
						"data": map[string]any{"type": []any{"object", "null"}},
					},
				},
			},
			"edges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"source", "target"},
					"properties": map[string]any{
						"id":           map[string]any{"type": "string"},
						"source":       map[string]any{"type": "string", "minLength": 1},
						"target":       map[string]any{"type": "string", "minLength": 1},
						"sourceHandle": map[string]any{"type": []any{"string", "null"}},
						"targetHandle": map[string]any{"type": []any{"string", "null"}},
						"data":         map[string]any{"type": []any{"object", "null"}},
					},
				},
			},
			"variables": map[string]any{"type": []any{"object", "null"}},
			"version":   map[string]any{"type": "integer", "minimum": 0},
		},
	}
}
