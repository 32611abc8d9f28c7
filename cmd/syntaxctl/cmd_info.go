package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/syntaxd/internal/engine/pcfg"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the configured engine's name, version and source identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			a := svc.Annotator
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "name:     %s\n", a.Name())
			fmt.Fprintf(w, "short:    %s\n", a.ShortName())
			fmt.Fprintf(w, "version:  %s\n", a.Version())
			fmt.Fprintf(w, "source:   %s\n", a.SourceIdentifier())
			fmt.Fprintf(w, "views:    %s / %s\n", cfg.Parser.SentenceView, cfg.Parser.TokenView)
			fmt.Fprintf(w, "policy:   %s\n", a.Options().Policy)
			return nil
		},
	}
}

func newGrammarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grammar [file.pcfg]",
		Short: "Check a grammar file, or the built-in grammar when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var g *pcfg.Grammar
			var err error
			name := "built-in"
			if len(args) == 1 {
				name = args[0]
				g, err = pcfg.LoadFile(name)
			} else {
				g, err = pcfg.Default()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, start=%s symbols=%d\n", name, g.Start(), g.NumSymbols())
			return nil
		},
	}
}
