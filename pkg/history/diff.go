package history

import (
	"bytes"
	"encoding/json"

	"github.com/dukex/flowpilot/pkg/models"
)

// Diff is the id-level difference between two snapshots. It is for display only.
type Diff struct {
	AddedNodes    []string `json:"addedNodes"`
	RemovedNodes  []string `json:"removedNodes"`
	ModifiedNodes []string `json:"modifiedNodes"`
	AddedEdges    []string `json:"addedEdges"`
	RemovedEdges  []string `json:"removedEdges"`
	ModifiedEdges []string `json:"modifiedEdges"`
}

// Empty reports whether the snapshots are equivalent.
func (d Diff) Empty() bool {
	return len(d.AddedNodes)+len(d.RemovedNodes)+len(d.ModifiedNodes)+
		len(d.AddedEdges)+len(d.RemovedEdges)+len(d.ModifiedEdges) == 0
}

// Compare diffs a against b. Ids present only in b are added, only in a are removed, and
// ids in both whose serialized data differs are modified. Results follow slice order.
func Compare(a, b *Snapshot) Diff {
	if a == nil {
		a = &Snapshot{}
	}

	if b == nil {
		b = &Snapshot{}
	}

	d := Diff{
		AddedNodes:    []string{},
		RemovedNodes:  []string{},
		ModifiedNodes: []string{},
		AddedEdges:    []string{},
		RemovedEdges:  []string{},
		ModifiedEdges: []string{},
	}

	before := make(map[string]*models.GraphNode, len(a.Nodes))
	for _, n := range a.Nodes {
		if n != nil {
			before[n.ID] = n
		}
	}

	after := make(map[string]bool, len(b.Nodes))

	for _, n := range b.Nodes {
		if n == nil {
			continue
		}

		after[n.ID] = true

		old, ok := before[n.ID]

		switch {
		case !ok:
			d.AddedNodes = append(d.AddedNodes, n.ID)
		case !sameJSON(old.Data, n.Data):
			d.ModifiedNodes = append(d.ModifiedNodes, n.ID)
		}
	}

	for _, n := range a.Nodes {
		if n != nil && !after[n.ID] {
			d.RemovedNodes = append(d.RemovedNodes, n.ID)
		}
	}

	beforeEdges := make(map[string]*models.GraphEdge, len(a.Edges))
	for _, e := range a.Edges {
		if e != nil {
			beforeEdges[e.ID] = e
		}
	}

	afterEdges := make(map[string]bool, len(b.Edges))

	for _, e := range b.Edges {
		if e == nil {
			continue
		}

		afterEdges[e.ID] = true

		old, ok := beforeEdges[e.ID]

		switch {
		case !ok:
			d.AddedEdges = append(d.AddedEdges, e.ID)
		case !old.SameConnection(e.Source, e.SourceHandle, e.Target, e.TargetHandle) || !sameJSON(old.Data, e.Data):
			d.ModifiedEdges = append(d.ModifiedEdges, e.ID)
		}
	}

	for _, e := range a.Edges {
		if e != nil && !afterEdges[e.ID] {
			d.RemovedEdges = append(d.RemovedEdges, e.ID)
		}
	}

	return d
}

// sameJSON compares values by their serialized form; map keys are sorted by encoding/json.
func sameJSON(a, b any) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)

	if errA != nil || errB != nil {
		return false
	}

	return bytes.Equal(left, right)
}
