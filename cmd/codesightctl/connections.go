package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"basegraph.app/codesight/internal/service"
)

var (
	userID     int64
	policyFlag string
)

var errNoUserID = errors.New("--user-id is required")

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List a user's repository connections",
	Args:  cobra.NoArgs,
	RunE:  runConnections,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Restore missing webhooks and backfill stored hook ids",
	Long: `Re-ensures the webhook of every connection the user owns. Connections whose
webhook was deleted on the provider get a new one; connections stored without a
hook id get it backfilled.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var disconnectAllCmd = &cobra.Command{
	Use:   "disconnect-all",
	Short: "Remove every webhook and connection of a user",
	Args:  cobra.NoArgs,
	RunE:  runDisconnectAll,
}

func init() {
	for _, c := range []*cobra.Command{connectionsCmd, reconcileCmd, disconnectAllCmd} {
		c.Flags().Int64Var(&userID, "user-id", 0, "User whose connections to operate on")
		rootCmd.AddCommand(c)
	}
	disconnectAllCmd.Flags().StringVar(&policyFlag, "policy", string(service.PolicyBestEffort), "best_effort or strict")
}

func runConnections(cmd *cobra.Command, _ []string) error {
	if userID <= 0 {
		return errNoUserID
	}
	return withServices(cmd.Context(), func(s *service.Services) error {
		conns, err := s.Connections().ListConnections(cmd.Context(), userID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREPOSITORY\tPROVIDER ID\tWEBHOOK\tCREATED")
		for _, c := range conns {
			hook := "-"
			if c.WebhookID != nil {
				hook = fmt.Sprint(*c.WebhookID)
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", c.ID, c.FullName, c.ProviderRepoID, hook, c.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	})
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	if userID <= 0 {
		return errNoUserID
	}
	return withServices(cmd.Context(), func(s *service.Services) error {
		result, err := s.Connections().Repair(cmd.Context(), userID)
		if err != nil {
			return err
		}

		cmd.Printf("checked %d, restored %d, backfilled %d, failed %d\n",
			result.Checked, result.Restored, result.Backfilled, len(result.Failures))
		for _, f := range result.Failures {
			cmd.Printf("  %s (%d): %v\n", f.FullName, f.ConnectionID, f.Err)
		}
		if len(result.Failures) > 0 {
			return fmt.Errorf("%d connections could not be reconciled", len(result.Failures))
		}
		return nil
	})
}

func runDisconnectAll(cmd *cobra.Command, _ []string) error {
	if userID <= 0 {
		return errNoUserID
	}
	policy, err := service.ParseDisconnectPolicy(policyFlag)
	if err != nil {
		return err
	}
	return withServices(cmd.Context(), func(s *service.Services) error {
		result := s.Connections().DisconnectAll(cmd.Context(), userID, policy)

		cmd.Printf("policy %s: attempted %d, webhooks removed %d, failed %d, deleted %d\n",
			result.Policy, result.Attempted, result.WebhooksRemoved, result.Failed, result.Deleted)
		for _, f := range result.Failures {
			cmd.Printf("  %s (%d): %v\n", f.FullName, f.ConnectionID, f.Err)
		}
		return result.Err
	})
}
