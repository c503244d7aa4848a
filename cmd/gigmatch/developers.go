package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/observability"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/spf13/cobra"
)

var (
	devName   string
	devEmail  string
	devLevel  string
	devSkills []string

	activityDeveloper string
	activityLimit     int
)

var developerCmd = &cobra.Command{
	Use:   "developer",
	Short: "Manage the developer pool",
}

var developerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a developer to the invitation pool",
	RunE:  runDeveloperAdd,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Print a developer's pending invitations and recent activity",
	RunE:  runActivity,
}

func init() {
	developerAddCmd.Flags().StringVar(&devName, "name", "", "Developer name (required)")
	developerAddCmd.Flags().StringVar(&devEmail, "email", "", "Developer email (required)")
	developerAddCmd.Flags().StringVar(&devLevel, "level", "", "EXPERT, MID or FRESHER (required)")
	developerAddCmd.Flags().StringSliceVar(&devSkills, "skills", nil, "Comma-separated skills")
	_ = developerAddCmd.MarkFlagRequired("name")
	_ = developerAddCmd.MarkFlagRequired("email")
	_ = developerAddCmd.MarkFlagRequired("level")
	developerCmd.AddCommand(developerAddCmd)

	activityCmd.Flags().StringVar(&activityDeveloper, "developer", "", "Developer ID (required)")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 20, "Maximum activity entries")
	_ = activityCmd.MarkFlagRequired("developer")

	rootCmd.AddCommand(developerCmd, activityCmd)
}

func runDeveloperAdd(cmd *cobra.Command, _ []string) error {
	level := types.Level(devLevel)
	if !level.IsValid() {
		return fmt.Errorf("invalid --level %q: must be EXPERT, MID or FRESHER", devLevel)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.db.CreateDeveloper(ctx, &db.NewDeveloper{Name: devName, Email: devEmail, Level: level, Skills: devSkills})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) as %s\n", d.Name, d.ID, d.Level)
	return nil
}

func runActivity(cmd *cobra.Command, _ []string) error {
	developerID, err := uuid.Parse(activityDeveloper)
	if err != nil {
		return fmt.Errorf("invalid --developer: %w", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.manager.PendingInvitations(ctx, developerID)
	if err != nil {
		return err
	}
	recent, err := a.manager.RecentActivity(ctx, developerID, activityLimit)
	if err != nil {
		return err
	}

	p := observability.NewPrinter(cmd.OutOrStdout())
	p.PrintCandidates("PENDING INVITATIONS", pending)
	p.PrintCandidates("RECENT ACTIVITY", recent)
	return nil
}
