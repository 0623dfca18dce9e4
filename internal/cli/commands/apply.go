package commands

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/seedsync/pkg/fixture"
)

var (
	applyPruneFlag   bool
	applyYesFlag     bool
	applyVerboseFlag bool
)

func newApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Sync all fixtures into the database",
		Long: `Load every fixture file, compute a safe sync order, and apply the
fixtures to the configured database.

With --prune, rows of a fixture's resource that the fixture no longer defines
are deleted after the sync. Pruning asks for confirmation unless --yes is set.`,
		Example: `  # Sync fixtures from the paths in seedsync.yml
  seedsync apply

  # Sync and delete rows the fixtures no longer define
  seedsync apply --prune

  # Skip the prune confirmation prompt
  seedsync apply --prune --yes`,
		RunE: runApply,
	}

	cmd.Flags().BoolVar(&applyPruneFlag, "prune", false, "Delete rows the fixtures no longer define")
	cmd.Flags().BoolVarP(&applyYesFlag, "yes", "y", false, "Skip confirmation prompts")
	cmd.Flags().BoolVarP(&applyVerboseFlag, "verbose", "v", false, "Log sync progress")

	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)
	errorColor := color.New(color.FgRed, color.Bold)

	cfg, registry, fixtures, err := loadProject()
	if err != nil {
		return err
	}

	if applyPruneFlag && !applyYesFlag {
		confirmed := false
		prompt := &survey.Confirm{
			Message: "Pruning deletes database rows the fixtures no longer define. Continue?",
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			infoColor.Println("Aborted.")
			return nil
		}
	}

	db, adapter, err := openStore(cfg, registry)
	if err != nil {
		return err
	}
	defer db.Close()

	syncer := fixture.NewSyncer(adapter, registry)
	if applyVerboseFlag {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
		syncer.WithLogger(logger)
	}

	order, err := fixture.BuildOrder(fixtures)
	if err != nil {
		return err
	}

	results, err := syncer.SyncAll(ctx, fixtures, fixture.Options{Prune: applyPruneFlag})
	if err != nil {
		errorColor.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
		return err
	}

	for _, name := range order {
		result := results[name]
		line := fmt.Sprintf("✓ %s: %d synced", name, len(result.Synced))
		if applyPruneFlag {
			line += fmt.Sprintf(", %d deleted", len(result.Deleted))
		}
		successColor.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
