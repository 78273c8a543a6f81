package registry

import (
	"log/slog"
	"testing"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultNodes(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())

	entries := r.All()
	require.Len(t, entries, len(models.NodeTypes))

	for i, nodeType := range models.NodeTypes {
		assert.Equal(t, nodeType, entries[i].Type, "catalog keeps registration order")
		assert.Equal(t, nodeType, entries[i].Template.NodeType())
		assert.NotEmpty(t, entries[i].Label)
	}

	msg, ok := r.HealthCheck()
	assert.True(t, ok)
	assert.Contains(t, msg, "8 node types")
}

func TestRegistry_TriggerIsSourceOnly(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())

	trigger, ok := r.Lookup(models.NodeTypeTrigger)
	require.True(t, ok)
	assert.False(t, trigger.AcceptsInput())
	assert.True(t, trigger.HasOutputs())
	assert.False(t, trigger.HasInput(""))
}

func TestEntry_Handles(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())

	condition, ok := r.Lookup(models.NodeTypeCondition)
	require.True(t, ok)

	assert.True(t, condition.HasOutput("true"))
	assert.True(t, condition.HasOutput("false"))
	assert.True(t, condition.HasOutput(DefaultHandle))
	assert.False(t, condition.HasOutput("out"))
	assert.True(t, condition.HasInput("in"))
	assert.False(t, condition.HasInput("other"))

	name, ok := condition.ResolveOutput(DefaultHandle)
	require.True(t, ok)
	assert.Equal(t, "true", name)

	name, ok = condition.ResolveOutput("false")
	require.True(t, ok)
	assert.Equal(t, "false", name)

	_, ok = condition.ResolveOutput("maybe")
	assert.False(t, ok)

	name, ok = condition.ResolveInput("")
	require.True(t, ok)
	assert.Equal(t, "in", name)

	trigger, ok := r.Lookup(models.NodeTypeTrigger)
	require.True(t, ok)

	_, ok = trigger.ResolveInput("")
	assert.False(t, ok)
}

func TestRegistry_Register_Errors(t *testing.T) {
	r := NewRegistry(slog.Default())

	err := r.Register(&Entry{Type: "screenshot", Template: &models.ClickData{}})
	assert.ErrorIs(t, err, models.ErrUnknownNodeType)

	err = r.Register(&Entry{Type: models.NodeTypeClick, Template: &models.WaitData{}})
	assert.Error(t, err)

	err = r.Register(&Entry{Type: models.NodeTypeClick, Template: &models.ClickData{ClickType: "triple"}})
	assert.Error(t, err)

	_, ok := r.HealthCheck()
	assert.False(t, ok)
}

func TestRegistry_Lookup_Unknown(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())

	_, ok := r.Lookup("teleport")
	assert.False(t, ok)
}
