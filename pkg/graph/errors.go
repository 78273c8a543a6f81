// Package graph implements node construction, connection rules and whole-graph validation.
package graph

import (
	"errors"
	"fmt"

	"github.com/dukex/flowpilot/pkg/models"
)

var (
	// ErrUnknownNodeType is returned by the factory for types missing from the registry.
	ErrUnknownNodeType = models.ErrUnknownNodeType

	// ErrInvalidConnection is returned when an edge would break a connection rule.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrNodeNotFound is returned when an operation references a node that does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an operation references an edge that does not exist.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrTriggerRequired is returned when removing the trigger would orphan other nodes.
	ErrTriggerRequired = errors.New("trigger node cannot be deleted while other nodes exist")

	// ErrNodeTypeImmutable is returned when a data update would change a node's type.
	ErrNodeTypeImmutable = errors.New("node type cannot be changed")
)

// NodeTypeError reports a node type the factory could not build.
type NodeTypeError struct {
	Type models.NodeType
	Err  error
}

func (e *NodeTypeError) Error() string {
	return fmt.Sprintf("cannot create node of type %q: %v", e.Type, e.Err)
}

func (e *NodeTypeError) Unwrap() error {
	return e.Err
}

// ConnectionError wraps a rejected connection with its reason.
type ConnectionError struct {
	Source string
	Target string
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect %s to %s: %s", e.Source, e.Target, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return ErrInvalidConnection
}
