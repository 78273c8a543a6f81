// Package editor applies editing commands to an in-memory workflow graph, records undo history
// and debounces saves to the workflow store.
package editor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/go-playground/validator/v10"
)

// CommandType names an editing command on the wire.
type CommandType string

const (
	CommandAddNode        CommandType = "add_node"
	CommandMoveNode       CommandType = "move_node"
	CommandUpdateNodeData CommandType = "update_node_data"
	CommandDeleteNode     CommandType = "delete_node"
	CommandConnect        CommandType = "connect"
	CommandDisconnect     CommandType = "disconnect"
	CommandSetVariable    CommandType = "set_variable"
	CommandUndo           CommandType = "undo"
	CommandRedo           CommandType = "redo"
	CommandSave           CommandType = "save"
)

var (
	// ErrUnknownCommand is returned for a command type the editor does not know.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidCommand wraps decoding and field validation failures of a command.
	ErrInvalidCommand = errors.New("invalid command")
)

// Command is one user interaction, emitted by the canvas and consumed by a Session.
type Command interface {
	Type() CommandType
}

// AddNode creates a node of NodeType from its registry template.
type AddNode struct {
	NodeType models.NodeType `json:"nodeType" validate:"required"`
	Position models.Position `json:"position"`
}

// MoveNode changes a node's canvas position.
type MoveNode struct {
	NodeID   string          `json:"nodeId"   validate:"required"`
	Position models.Position `json:"position"`
}

// UpdateNodeData carries the raw payload; it is decoded against the node's own type.
type UpdateNodeData struct {
	NodeID string          `json:"nodeId" validate:"required"`
	Data   json.RawMessage `json:"data"   validate:"required"`
}

// DeleteNode removes a node and every edge touching it.
type DeleteNode struct {
	NodeID string `json:"nodeId" validate:"required"`
}

// Connect draws an edge. Empty handles select the node's default handle.
type Connect struct {
	Source       string `json:"source"       validate:"required"`
	Target       string `json:"target"       validate:"required"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// Disconnect removes an edge by id.
type Disconnect struct {
	EdgeID string `json:"edgeId" validate:"required"`
}

// SetVariable sets a workflow variable. A null value removes it.
type SetVariable struct {
	Name  string `json:"name"  validate:"required"`
	Value any    `json:"value"`
}

// Undo steps back one history entry.
type Undo struct{}

// Redo steps forward one history entry.
type Redo struct{}

// Save persists the graph immediately instead of waiting for the autosave delay.
type Save struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (AddNode) Type() CommandType        { return CommandAddNode }
func (MoveNode) Type() CommandType       { return CommandMoveNode }
func (UpdateNodeData) Type() CommandType { return CommandUpdateNodeData }
func (DeleteNode) Type() CommandType     { return CommandDeleteNode }
func (Connect) Type() CommandType        { return CommandConnect }
func (Disconnect) Type() CommandType     { return CommandDisconnect }
func (SetVariable) Type() CommandType    { return CommandSetVariable }
func (Undo) Type() CommandType           { return CommandUndo }
func (Redo) Type() CommandType           { return CommandRedo }
func (Save) Type() CommandType           { return CommandSave }

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeCommand parses a {"type": ..., ...} message into its command.
func DecodeCommand(data []byte) (Command, error) {
	var envelope struct {
		Type CommandType `json:"type"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	cmd, err := newCommand(envelope.Type)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCommand, envelope.Type, err)
	}

	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCommand, envelope.Type, err)
	}

	return deref(cmd), nil
}

// newCommand returns a pointer to the zero command for t.
func newCommand(t CommandType) (Command, error) {
	switch t {
	case CommandAddNode:
		return &AddNode{}, nil
	case CommandMoveNode:
		return &MoveNode{}, nil
	case CommandUpdateNodeData:
		return &UpdateNodeData{}, nil
	case CommandDeleteNode:
		return &DeleteNode{}, nil
	case CommandConnect:
		return &Connect{}, nil
	case CommandDisconnect:
		return &Disconnect{}, nil
	case CommandSetVariable:
		return &SetVariable{}, nil
	case CommandUndo:
		return &Undo{}, nil
	case CommandRedo:
		return &Redo{}, nil
	case CommandSave:
		return &Save{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, t)
	}
}

func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *AddNode:
		return *c
	case *MoveNode:
		return *c
	case *UpdateNodeData:
		return *c
	case *DeleteNode:
		return *c
	case *Connect:
		return *c
	case *Disconnect:
		return *c
	case *SetVariable:
		return *c
	case *Undo:
		return *c
	case *Redo:
		return *c
	case *Save:
		return *c
	default:
		return cmd
	}
}
