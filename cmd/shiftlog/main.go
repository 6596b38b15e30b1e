package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shiftlog",
	Short: "Shiftlog — volunteer shift portfolio API",
	Long:  "Shiftlog is the HTTP API behind a personal volunteering portfolio: it records work shifts and the jobs attended during them, keyed to the authenticated user.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/shiftlog.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
