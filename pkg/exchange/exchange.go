// Package exchange converts workflow graphs to and from portable JSON documents.
package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/registry"
	"github.com/xeipuuv/gojsonschema"
)

// ContentType is the media type of exported documents.
const ContentType = "application/json"

// rootField names the document itself in field errors.
const rootField = "(root)"

// ErrInvalidDocument is wrapped by every ImportError.
var ErrInvalidDocument = errors.New("invalid workflow document")

// FieldError is one problem found in an imported document.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ImportError rejects an import as a whole and lists every problem found.
type ImportError struct {
	Fields []FieldError
}

func (e *ImportError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}

	return fmt.Sprintf("%s: %s", ErrInvalidDocument, strings.Join(parts, "; "))
}

func (e *ImportError) Unwrap() error {
	return ErrInvalidDocument
}

func (e *ImportError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Filename returns the download name of an export taken at now.
func Filename(workflowID string, now time.Time) string {
	return fmt.Sprintf("workflow-%s-%d.json", workflowID, now.UnixMilli())
}

// Export serializes g into a downloadable document.
func Export(workflowID string, g *models.WorkflowGraph, now time.Time) (string, []byte, error) {
	if g == nil {
		g = models.NewWorkflowGraph()
	}

	out := g.Clone()
	if out.Variables == nil {
		out.Variables = map[string]any{}
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode workflow %s: %w", workflowID, err)
	}

	return Filename(workflowID, now), body, nil
}

var schemaLoader = gojsonschema.NewGoLoader(graphSchema())

// Import parses a document produced by Export or written by hand. Nothing is returned unless
// the whole document is valid.
func Import(data []byte) (*models.WorkflowGraph, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &ImportError{Fields: []FieldError{{Field: rootField, Message: "document is not valid JSON: " + err.Error()}}}
	}

	if !result.Valid() {
		importErr := &ImportError{}

		for _, desc := range result.Errors() {
			importErr.add(fieldOf(desc), "%s", desc.Description())
		}

		return nil, importErr
	}

	return decode(data)
}

func fieldOf(desc gojsonschema.ResultError) string {
	field := desc.Field()

	if desc.Type() == "required" {
		if property, ok := desc.Details()["property"].(string); ok {
			if field == rootField {
				return property
			}

			return field + "." + property
		}
	}

	return field
}

// templates are the payloads of nodes imported without data.
var templates = func() map[models.NodeType]models.NodeData {
	out := make(map[models.NodeType]models.NodeData, len(models.NodeTypes))
	for _, entry := range registry.DefaultEntries() {
		out[entry.Type] = entry.Template
	}

	return out
}()

type nodeData struct {
	Data json.RawMessage `json:"data"`
}

type document struct {
	Nodes     []json.RawMessage   `json:"nodes"`
	Edges     []*models.GraphEdge `json:"edges"`
	Variables map[string]any      `json:"variables"`
	Version   int                 `json:"version"`
}

func decode(data []byte) (*models.WorkflowGraph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, &ImportError{Fields: []FieldError{{Field: rootField, Message: err.Error()}}}
	}

	importErr := &ImportError{}
	g := models.NewWorkflowGraph()
	g.Version = doc.Version
	seen := make(map[string]bool, len(doc.Nodes))

	for i, raw := range doc.Nodes {
		var node models.GraphNode
		if err := json.Unmarshal(raw, &node); err != nil {
			importErr.add(fmt.Sprintf("nodes.%d.data", i), "%v", err)

			continue
		}

		var payload nodeData
		if err := json.Unmarshal(raw, &payload); err == nil && isAbsent(payload.Data) {
			if template, ok := templates[node.Type]; ok {
				node.Data = template.Clone()
			}
		}

		if seen[node.ID] {
			importErr.add(fmt.Sprintf("nodes.%d.id", i), "duplicate node id %q", node.ID)

			continue
		}

		seen[node.ID] = true

		if err := models.ValidateNodeData(node.Data); err != nil {
			importErr.add(fmt.Sprintf("nodes.%d.data", i), "%v", err)

			continue
		}

		g.Nodes = append(g.Nodes, &node)
	}

	edgeIDs := make(map[string]bool, len(doc.Edges))

	for i, edge := range doc.Edges {
		if defects := graph.EdgeDefects(i, edge, seen); len(defects) > 0 {
			for _, d := range defects {
				importErr.add(d.Field, "%s", d.Message)
			}

			continue
		}

		if edge.ID == "" {
			edge.ID = models.EdgeID(edge.Source, edge.SourceHandle, edge.Target, edge.TargetHandle)
		}

		if edgeIDs[edge.ID] {
			importErr.add(fmt.Sprintf("edges.%d.id", i), "duplicate edge id %q", edge.ID)

			continue
		}

		edgeIDs[edge.ID] = true
		g.Edges = append(g.Edges, edge)
	}

	if len(importErr.Fields) > 0 {
		return nil, importErr
	}

	if doc.Variables != nil {
		g.Variables = doc.Variables
	}

	return g, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
