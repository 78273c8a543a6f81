package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowpilot/pkg/exchange"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGraph(t *testing.T, g *models.WorkflowGraph) string {
	t.Helper()

	_, body, err := exchange.Export("wf-1", g, time.Now())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	app := NewApp()
	app.Writer = &out

	err := app.Run(t.Context(), append([]string{"flowpilot"}, args...))

	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", writeGraph(t, testutil.CreateTestGraph()))
	require.NoError(t, err)
	assert.Contains(t, out, "is valid: 3 nodes, 2 edges")
}

func TestValidateCommand_GraphProblems(t *testing.T) {
	g := testutil.CreateTestGraph()
	g.Edges = g.Edges[:1]

	out, err := run(t, "validate", writeGraph(t, g))
	require.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, out, `node "click-1" (click) is not connected to the workflow`)
}

func TestValidateCommand_ForbiddenEdge(t *testing.T) {
	g := testutil.CreateTestGraph()
	g.Edges = append(g.Edges, &models.GraphEdge{ID: "back", Source: "click-1", Target: "trigger-1"})

	out, err := run(t, "validate", writeGraph(t, g))
	require.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, out, `edge "back"`)
}

func TestValidateCommand_ImportErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":[{"id":"a","type":"teleport","position":{"x":0,"y":0}}],"edges":[]}`), 0o600))

	out, err := run(t, "validate", path)
	require.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, out, "nodes.0")
}

func TestValidateCommand_MissingArgument(t *testing.T) {
	_, err := run(t, "validate")
	require.ErrorIs(t, err, ErrMissingArgument)
}

func TestDiffCommand(t *testing.T) {
	before := testutil.CreateTestGraph()
	after := before.Clone()
	after.Nodes[2].Data = &models.ClickData{Selector: "#other", ClickType: "double"}
	after.Nodes = append(after.Nodes, testutil.CreateTestNode(models.NodeTypeWait, testutil.WithNodeID("wait-1")))

	out, err := run(t, "diff", writeGraph(t, before), writeGraph(t, after))
	require.NoError(t, err)
	assert.Equal(t, "+ node wait-1\n~ node click-1\n", out)

	out, err = run(t, "diff", writeGraph(t, before), writeGraph(t, before))
	require.NoError(t, err)
	assert.Equal(t, "no changes\n", out)

	out, err = run(t, "diff", "--json", writeGraph(t, before), writeGraph(t, after))
	require.NoError(t, err)
	assert.Contains(t, out, `"addedNodes": [`)
}

func TestNewCommand(t *testing.T) {
	out, err := run(t, "new")
	require.NoError(t, err)

	g, err := exchange.Import([]byte(out))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, models.NodeTypeTrigger, g.Nodes[0].Type)
}
