package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/syntaxd/internal/config"
	"github.com/dgallion1/syntaxd/internal/forest"
	"github.com/dgallion1/syntaxd/internal/service"
)

// outputFlags are shared by every parse command.
type outputFlags struct {
	dump   bool
	policy string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.dump, "dump", false, "print a node listing instead of JSON")
	cmd.Flags().StringVar(&o.policy, "policy", "", "sentence failure policy: strict or partial (default from config)")
}

// newService loads SYNTAXD_* configuration and builds the annotator. The CLI
// logs to stderr so stdout carries only results.
func newService(ctx context.Context, o *outputFlags) (*service.Service, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if o != nil && o.policy != "" {
		cfg.Parser.FailurePolicy = o.policy
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := service.NewLogger(config.LogConfig{Level: cfg.Log.Level, Format: "text"}, os.Stderr)
	svc, err := service.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func writeTree(w io.Writer, tree *forest.Tree, dump bool) error {
	if dump {
		tree.Dump(w)
		return nil
	}
	return writeJSON(w, tree)
}

func writeForest(w io.Writer, f *forest.Forest, dump bool) error {
	if !dump {
		return writeJSON(w, f)
	}
	fmt.Fprintf(w, "forest source=%q trees=%d failures=%d\n", f.Source, len(f.Trees), len(f.Failures))
	for i := range f.Trees {
		fmt.Fprintf(w, "sentence %d: ", i)
		f.Trees[i].Dump(w)
	}
	for _, fail := range f.Failures {
		fmt.Fprintf(w, "failed sentence %d (%d,%d): %s\n", fail.Sentence, fail.Span.Start, fail.Span.End, fail.Reason)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads the named file, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
