package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// NodeType identifies the kind of a graph node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeNavigate  NodeType = "navigate"
	NodeTypeClick     NodeType = "click"
	NodeTypeType      NodeType = "type"
	NodeTypeExtract   NodeType = "extract"
	NodeTypeWait      NodeType = "wait"
	NodeTypeCondition NodeType = "condition"
	NodeTypeLoop      NodeType = "loop"
)

// NodeTypes lists every known node type in catalog order.
var NodeTypes = []NodeType{
	NodeTypeTrigger,
	NodeTypeNavigate,
	NodeTypeClick,
	NodeTypeType,
	NodeTypeExtract,
	NodeTypeWait,
	NodeTypeCondition,
	NodeTypeLoop,
}

var (
	// ErrUnknownNodeType is returned whenever a node type is not part of the catalog.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidNodeData wraps field constraint violations of a node payload.
	ErrInvalidNodeData = errors.New("invalid node data")
)

// Trigger kinds.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWebhook  = "webhook"
)

// NodeData is the type-specific payload of a node. The set of implementations is closed.
type NodeData interface {
	NodeType() NodeType
	Clone() NodeData
	isNodeData()
}

// TriggerData configures how a workflow is started.
type TriggerData struct {
	TriggerType string `json:"triggerType"           validate:"required,oneof=manual schedule webhook"`
	Schedule    string `json:"schedule,omitempty"    validate:"required_if=TriggerType schedule,omitempty,cron"`
	WebhookPath string `json:"webhookPath,omitempty" validate:"omitempty,startswith=/"`
}

// NavigateData opens a URL.
type NavigateData struct {
	URL       string `json:"url"`
	WaitUntil string `json:"waitUntil" validate:"omitempty,oneof=load domcontentloaded networkidle"`
	TimeoutMs int    `json:"timeoutMs" validate:"min=0"`
}

// ClickData clicks the element matched by Selector.
type ClickData struct {
	Selector          string `json:"selector"`
	ClickType         string `json:"clickType"         validate:"omitempty,oneof=single double right"`
	WaitForNavigation bool   `json:"waitForNavigation"`
}

// TypeData types text into an input.
type TypeData struct {
	Selector   string `json:"selector"`
	Text       string `json:"text"`
	ClearFirst bool   `json:"clearFirst"`
}

// ExtractData reads content from the page into a variable.
type ExtractData struct {
	Selector     string `json:"selector"`
	Attribute    string `json:"attribute,omitempty"`
	Multiple     bool   `json:"multiple"`
	VariableName string `json:"variableName" validate:"omitempty,max=128"`
}

// WaitData pauses for a duration or until Selector appears.
type WaitData struct {
	DurationMs int    `json:"durationMs"         validate:"min=0"`
	Selector   string `json:"selector,omitempty"`
}

// ConditionData branches on an expression. Outputs are "true" and "false".
type ConditionData struct {
	Expression string `json:"expression"`
}

// LoopData iterates over Items. Outputs are "body" and "done".
type LoopData struct {
	Items         string `json:"items"`
	MaxIterations int    `json:"maxIterations" validate:"min=0"`
}

func (*TriggerData) NodeType() NodeType   { return NodeTypeTrigger }
func (*NavigateData) NodeType() NodeType  { return NodeTypeNavigate }
func (*ClickData) NodeType() NodeType     { return NodeTypeClick }
func (*TypeData) NodeType() NodeType      { return NodeTypeType }
func (*ExtractData) NodeType() NodeType   { return NodeTypeExtract }
func (*WaitData) NodeType() NodeType      { return NodeTypeWait }
func (*ConditionData) NodeType() NodeType { return NodeTypeCondition }
func (*LoopData) NodeType() NodeType      { return NodeTypeLoop }

func (d *TriggerData) Clone() NodeData   { c := *d; return &c }
func (d *NavigateData) Clone() NodeData  { c := *d; return &c }
func (d *ClickData) Clone() NodeData     { c := *d; return &c }
func (d *TypeData) Clone() NodeData      { c := *d; return &c }
func (d *ExtractData) Clone() NodeData   { c := *d; return &c }
func (d *WaitData) Clone() NodeData      { c := *d; return &c }
func (d *ConditionData) Clone() NodeData { c := *d; return &c }
func (d *LoopData) Clone() NodeData      { c := *d; return &c }

func (*TriggerData) isNodeData()   {}
func (*NavigateData) isNodeData()  {}
func (*ClickData) isNodeData()     {}
func (*TypeData) isNodeData()      {}
func (*ExtractData) isNodeData()   {}
func (*WaitData) isNodeData()      {}
func (*ConditionData) isNodeData() {}
func (*LoopData) isNodeData()      {}

// NewNodeData returns the zero payload for the given node type.
// Adding a node type means adding a case here; anything else is rejected.
func NewNodeData(nodeType NodeType) (NodeData, error) {
	switch nodeType {
	case NodeTypeTrigger:
		return &TriggerData{}, nil
	case NodeTypeNavigate:
		return &NavigateData{}, nil
	case NodeTypeClick:
		return &ClickData{}, nil
	case NodeTypeType:
		return &TypeData{}, nil
	case NodeTypeExtract:
		return &ExtractData{}, nil
	case NodeTypeWait:
		return &WaitData{}, nil
	case NodeTypeCondition:
		return &ConditionData{}, nil
	case NodeTypeLoop:
		return &LoopData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, nodeType)
	}
}

// IsValidNodeType reports whether nodeType is part of the catalog.
func IsValidNodeType(nodeType NodeType) bool {
	_, err := NewNodeData(nodeType)

	return err == nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())

		return err == nil
	})

	return v
}

// ValidateNodeData checks the payload's field constraints.
func ValidateNodeData(data NodeData) error {
	if data == nil {
		return fmt.Errorf("%w: data is required", ErrInvalidNodeData)
	}

	if err := validate.Struct(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidNodeData, data.NodeType(), err)
	}

	return nil
}
