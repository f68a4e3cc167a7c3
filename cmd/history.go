package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"appframe/internal/format"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "View request history",
		RunE:  runHistoryList,
	}

	historyCmd.Flags().IntP("limit", "n", 10, "Number of requests to show")
	historyCmd.Flags().BoolP("long", "l", false, "Show request IDs and timestamps")

	showCmd := &cobra.Command{
		Use:   "show <id or index>",
		Short: "Show full details of a request",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all history",
		RunE:  runHistoryClear,
	}

	historyCmd.AddCommand(showCmd, clearCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to load history: %v", err))
		return err
	}
	defer e.Close()

	history, err := e.store.LoadHistory()
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to load history: %v", err))
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if long, _ := cmd.Flags().GetBool("long"); long {
		format.PrintHistoryLong(history.Requests, limit)
		return nil
	}
	format.PrintHistoryList(history.Requests, limit)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to load history: %v", err))
		return err
	}
	defer e.Close()

	history, err := e.store.LoadHistory()
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to load history: %v", err))
		return err
	}

	identifier := args[0]

	// Try to parse as index first (1-based)
	if index, err := strconv.Atoi(identifier); err == nil {
		if index > 0 && index <= len(history.Requests) {
			format.PrintRequestDetail(&history.Requests[index-1])
			return nil
		}
	}

	req, err := e.store.GetHistoryRequest(identifier)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to load history: %v", err))
		return err
	}
	if req == nil {
		err := fmt.Errorf("request not found: %s", identifier)
		format.PrintError(fmt.Sprintf("Request not found: %s", identifier))
		return err
	}

	format.PrintRequestDetail(req)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to clear history: %v", err))
		return err
	}
	defer e.Close()

	if err := e.store.ClearHistory(); err != nil {
		format.PrintError(fmt.Sprintf("Failed to clear history: %v", err))
		return err
	}

	format.PrintSuccess("History cleared")
	return nil
}
