package registry

import (
	"log/slog"

	"github.com/dukex/flowpilot/pkg/models"
)

var (
	mainInput  = []Handle{{Name: "in", Label: "Input"}}
	mainOutput = []Handle{{Name: "out", Label: "Next"}}
)

// DefaultEntries returns the built-in node types.
func DefaultEntries() []*Entry {
	return []*Entry{
		{
			Type:        models.NodeTypeTrigger,
			Label:       "Trigger",
			Category:    CategoryTrigger,
			Icon:        "zap",
			Description: "Starts the workflow manually, on a schedule or from a webhook.",
			Outputs:     mainOutput,
			Template:    &models.TriggerData{TriggerType: models.TriggerManual},
		},
		{
			Type:        models.NodeTypeNavigate,
			Label:       "Navigate",
			Category:    CategoryBrowser,
			Icon:        "globe",
			Description: "Opens a URL in the browser.",
			Inputs:      mainInput,
			Outputs:     mainOutput,
			Template:    &models.NavigateData{WaitUntil: "load", TimeoutMs: 30000},
		},
		{
			Type:        models.NodeTypeClick,
			Label:       "Click",
			Category:    CategoryBrowser,
			Icon:        "mouse-pointer",
			Description: "Clicks the element matching a CSS selector.",
			Inputs:      mainInput,
			Outputs:     mainOutput,
			Template:    &models.ClickData{Selector: "", ClickType: "single"},
		},
		{
			Type:        models.NodeTypeType,
			Label:       "Type Text",
			Category:    CategoryBrowser,
			Icon:        "keyboard",
			Description: "Types text into an input field.",
			Inputs:      mainInput,
			Outputs:     mainOutput,
			Template:    &models.TypeData{ClearFirst: true},
		},
		{
			Type:        models.NodeTypeExtract,
			Label:       "Extract Data",
			Category:    CategoryData,
			Icon:        "file-search",
			Description: "Reads text or an attribute from the page into a variable.",
			Inputs:      mainInput,
			Outputs:     mainOutput,
			Template:    &models.ExtractData{},
		},
		{
			Type:        models.NodeTypeWait,
			Label:       "Wait",
			Category:    CategoryControl,
			Icon:        "clock",
			Description: "Pauses for a duration or until an element appears.",
			Inputs:      mainInput,
			Outputs:     mainOutput,
			Template:    &models.WaitData{DurationMs: 1000},
		},
		{
			Type:        models.NodeTypeCondition,
			Label:       "Condition",
			Category:    CategoryControl,
			Icon:        "git-branch",
			Description: "Routes execution to the true or false branch.",
			Inputs:      mainInput,
			Outputs:     []Handle{{Name: "true", Label: "True"}, {Name: "false", Label: "False"}},
			Template:    &models.ConditionData{},
		},
		{
			Type:        models.NodeTypeLoop,
			Label:       "Loop",
			Category:    CategoryControl,
			Icon:        "repeat",
			Description: "Runs the body branch for every item, then continues on done.",
			Inputs:      mainInput,
			Outputs:     []Handle{{Name: "body", Label: "Each item"}, {Name: "done", Label: "Done"}},
			Template:    &models.LoopData{MaxIterations: 100},
		},
	}
}

// RegisterDefaultNodes registers all built-in node types with the registry.
func (r *Registry) RegisterDefaultNodes() {
	for _, entry := range DefaultEntries() {
		if err := r.Register(entry); err != nil {
			panic(err)
		}
	}
}

// NewDefaultRegistry returns a registry holding the built-in node types.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)
	r.RegisterDefaultNodes()

	return r
}
