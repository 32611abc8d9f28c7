package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "syntaxctl",
		Short:         "Parse sentences, records and documents with the syntaxd annotator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newSentenceCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newFileCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newGrammarCmd())

	return rootCmd
}
