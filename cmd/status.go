package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"appframe/internal/events"
	"appframe/internal/format"
	"appframe/internal/status"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show or change the application status",
		RunE:  runStatusShow,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current status",
		Args:  cobra.NoArgs,
		RunE:  runStatusShow,
	}

	setCmd := &cobra.Command{
		Use:       "set <loggedout|loggedin|activated>",
		Short:     "Change the status",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(status.LoggedOut), string(status.LoggedIn), string(status.Activated)},
		RunE:      runStatusSet,
	}

	statusCmd.AddCommand(showCmd, setCmd)
	rootCmd.AddCommand(statusCmd)
}

func openStatus(cmd *cobra.Command) (*env, *status.Store, error) {
	e, err := loadEnv(cmd)
	if err != nil {
		return nil, nil, err
	}
	return e, status.NewStore(e.cfg.AppID, e.store, events.NewEmitter(), e.logger), nil
}

func runStatusShow(cmd *cobra.Command, args []string) error {
	e, store, err := openStatus(cmd)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to load status: %v", err))
		return err
	}
	defer e.Close()

	format.PrintStatus(store.GetStatus())
	return nil
}

func runStatusSet(cmd *cobra.Command, args []string) error {
	next, err := status.Parse(args[0])
	if err != nil {
		format.PrintError(err.Error())
		return err
	}

	e, store, err := openStatus(cmd)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to set status: %v", err))
		return err
	}
	defer e.Close()

	// Load the persisted value so the change shows a real previous status
	store.GetStatus()
	store.OnChange(format.PrintStatusChange)

	if err := store.SetStatus(next); err != nil {
		format.PrintError(fmt.Sprintf("Failed to set status: %v", err))
		return err
	}
	return nil
}
