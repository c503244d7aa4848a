package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/observability"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/spf13/cobra"
)

var (
	composeProject  string
	composeNoExpire bool
	composeMix      map[string]int
	refreshProject  string
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose a new rotation batch for a project",
	RunE:  runCompose,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace a project's rotation batch with fresh candidates",
	RunE:  runRefresh,
}

func init() {
	composeCmd.Flags().StringVar(&composeProject, "project", "", "Project ID (required)")
	composeCmd.Flags().BoolVar(&composeNoExpire, "no-expire", false, "Invitations never expire")
	composeCmd.Flags().StringToIntVar(&composeMix, "mix", nil, "Level mix, e.g. EXPERT=1,MID=2,FRESHER=0")
	_ = composeCmd.MarkFlagRequired("project")

	refreshCmd.Flags().StringVar(&refreshProject, "project", "", "Project ID (required)")
	_ = refreshCmd.MarkFlagRequired("project")

	rootCmd.AddCommand(composeCmd, refreshCmd)
}

// parseLevelMix converts --mix flag values into a LevelMix.
func parseLevelMix(raw map[string]int) (assignment.LevelMix, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	mix := make(assignment.LevelMix, len(raw))
	for k, v := range raw {
		level := types.Level(k)
		if !level.IsValid() {
			return nil, fmt.Errorf("unknown level %q in --mix", k)
		}
		mix[level] = v
	}
	if err := mix.Validate(); err != nil {
		return nil, err
	}
	return mix, nil
}

func runCompose(cmd *cobra.Command, _ []string) error {
	projectID, err := uuid.Parse(composeProject)
	if err != nil {
		return fmt.Errorf("invalid --project: %w", err)
	}
	mix, err := parseLevelMix(composeMix)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	batch, err := a.manager.ComposeBatch(ctx, assignment.ComposeRequest{
		ProjectID: projectID,
		LevelMix:  mix,
		NoExpire:  composeNoExpire,
	})
	if err != nil {
		return fmt.Errorf("compose failed: %w", err)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintBatch(batch)
	return nil
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	projectID, err := uuid.Parse(refreshProject)
	if err != nil {
		return fmt.Errorf("invalid --project: %w", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.manager.RefreshBatch(ctx, projectID)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRefresh(res.Refreshed, res.FallbackUsed, res.Batch)
	return nil
}
