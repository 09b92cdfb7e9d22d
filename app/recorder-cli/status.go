package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/recorder"
)

func openStore(cmd *cobra.Command) (*recorder.SQLiteStatusStore, error) {
	path, _ := cmd.Flags().GetString("status-db")
	if path == "" {
		path = recorder.DefaultStatusPath()
	}
	return recorder.OpenStatusStore(path)
}

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the remembered recorder status of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		st, ok, err := store.Load(sessionID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (nothing remembered)\n", sessionID, st)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sessionID, st)
		return nil
	},
}

var ResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the remembered recorder status of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Save(sessionID, models.StatusIdle)
	},
}
