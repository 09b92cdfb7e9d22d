package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recorder-cli",
	Short: "Stream audio to a transcription session",
	Long:  `recorder-cli captures audio from a file, streams it to the transcription server in time slices and prints the live transcript and the final summary.`,
}

func init() {
	rootCmd.PersistentFlags().String("session", "", "session id")
	rootCmd.PersistentFlags().String("status-db", "", "recorder status database (defaults to the user config dir)")
	_ = rootCmd.MarkPersistentFlagRequired("session")

	rootCmd.AddCommand(StreamCmd, StatusCmd, ResetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
