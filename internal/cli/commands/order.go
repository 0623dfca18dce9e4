package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/seedsync/pkg/fixture"
	"github.com/conduit-lang/seedsync/pkg/graph"
)

func newOrderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print the dependency-safe sync order",
		Long: `Compute and print the order fixtures would be synced in, without
touching the database. Useful for inspecting dependency problems.`,
		RunE: runOrder,
	}
}

func runOrder(cmd *cobra.Command, args []string) error {
	errorColor := color.New(color.FgRed, color.Bold)

	_, _, fixtures, err := loadProject()
	if err != nil {
		return err
	}

	order, err := fixture.BuildOrder(fixtures)
	if err != nil {
		var cycle *graph.CycleError
		if errors.As(err, &cycle) {
			errorColor.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", cycle)
		}
		return err
	}

	for i, name := range order {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
	}
	return nil
}
