package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dukex/flowpilot/pkg/cmd"
	"github.com/dukex/flowpilot/pkg/exchange"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/history"
	"github.com/dukex/flowpilot/pkg/log"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/urfave/cli/v3"
)

var (
	ErrInvalidWorkflow = errors.New("workflow is invalid")
	ErrMissingArgument = errors.New("missing argument")
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check an exported workflow document",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			if command.NArg() != 1 {
				return fmt.Errorf("%w: validate <file>", ErrMissingArgument)
			}

			return validateFile(command.Root().Writer, command.Args().First())
		},
	}
}

func NewDiffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Aliases:   []string{"d"},
		Usage:     "Show which nodes and edges changed between two exported workflows",
		ArgsUsage: "<before> <after>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the diff as JSON",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			if command.NArg() != 2 {
				return fmt.Errorf("%w: diff <before> <after>", ErrMissingArgument)
			}

			return diffFiles(command.Root().Writer, command.Args().Get(0), command.Args().Get(1), command.Bool("json"))
		},
	}
}

func NewNewCommand() *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Print the document of a new workflow with a single trigger",
		Action: func(_ context.Context, command *cli.Command) error {
			factory, _ := cmd.NewGraphTools(cmd.NewRegistry(log.WithModule("cli")))

			g, err := factory.NewDefaultGraph()
			if err != nil {
				return err
			}

			_, body, err := exchange.Export(models.NewTemporaryID(), g, time.Now())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(command.Root().Writer, string(body))

			return err
		},
	}
}

func readGraph(path string) (*models.WorkflowGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	g, err := exchange.Import(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return g, nil
}

// validateFile prints every problem of the document at path. Import errors, graph rule
// violations and edges the connection rules forbid all make it invalid.
func validateFile(w io.Writer, path string) error {
	g, err := readGraph(path)

	var importErr *exchange.ImportError
	if errors.As(err, &importErr) {
		for _, field := range importErr.Fields {
			fmt.Fprintf(w, "%s: %s\n", field.Field, field.Message)
		}

		return fmt.Errorf("%w: %d import errors", ErrInvalidWorkflow, len(importErr.Fields))
	}

	if err != nil {
		return err
	}

	problems := graph.Validate(g.Nodes, g.Edges).Errors
	problems = append(problems, edgeProblems(g)...)

	for _, problem := range problems {
		fmt.Fprintln(w, problem)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %d problems", ErrInvalidWorkflow, len(problems))
	}

	_, err = fmt.Fprintf(w, "%s is valid: %d nodes, %d edges\n", path, len(g.Nodes), len(g.Edges))

	return err
}

// edgeProblems checks each stored edge against the connection rules, ignoring the edge itself
// so it is not reported as its own duplicate.
func edgeProblems(g *models.WorkflowGraph) []string {
	_, connections := cmd.NewGraphTools(cmd.NewRegistry(log.WithModule("cli")))

	var problems []string

	for i, edge := range g.Edges {
		source, target := g.Node(edge.Source), g.Node(edge.Target)
		if source == nil || target == nil {
			continue
		}

		others := append(append([]*models.GraphEdge{}, g.Edges[:i]...), g.Edges[i+1:]...)

		result := connections.Validate(source, target, edge.SourceHandle, edge.TargetHandle, others)
		if !result.Valid {
			problems = append(problems, fmt.Sprintf("edge %q: %s", edge.ID, result.Error))
		}
	}

	return problems
}

func diffFiles(w io.Writer, beforePath, afterPath string, asJSON bool) error {
	before, err := readGraph(beforePath)
	if err != nil {
		return err
	}

	after, err := readGraph(afterPath)
	if err != nil {
		return err
	}

	diff := history.Compare(
		&history.Snapshot{Nodes: before.Nodes, Edges: before.Edges},
		&history.Snapshot{Nodes: after.Nodes, Edges: after.Edges},
	)

	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(diff)
	}

	if diff.Empty() {
		_, err := fmt.Fprintln(w, "no changes")

		return err
	}

	for _, section := range []struct {
		mark, kind string
		ids        []string
	}{
		{"+", "node", diff.AddedNodes},
		{"-", "node", diff.RemovedNodes},
		{"~", "node", diff.ModifiedNodes},
		{"+", "edge", diff.AddedEdges},
		{"-", "edge", diff.RemovedEdges},
		{"~", "edge", diff.ModifiedEdges},
	} {
		for _, id := range section.ids {
			fmt.Fprintf(w, "%s %s %s\n", section.mark, section.kind, id)
		}
	}

	return nil
}
