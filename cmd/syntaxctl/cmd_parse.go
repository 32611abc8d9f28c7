package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/syntaxd/internal/boundary"
	"github.com/dgallion1/syntaxd/internal/forest"
	"github.com/dgallion1/syntaxd/internal/textract"
)

func newSentenceCmd() *cobra.Command {
	var out outputFlags
	var start int

	cmd := &cobra.Command{
		Use:   "sentence [text]",
		Short: "Parse one sentence",
		Long: `Parse one sentence and print its flattened tree.

The sentence is taken from the arguments, or read from stdin when none are
given. --start shifts every span by that many characters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := readInput(cmd, "")
				if err != nil {
					return err
				}
				text = strings.TrimRight(string(data), "\r\n")
			}
			svc, _, err := newService(cmd.Context(), &out)
			if err != nil {
				return err
			}
			defer svc.Close()

			tree, err := svc.Annotator.ParseSentence(cmd.Context(), text, start)
			if err != nil {
				return err
			}
			return writeTree(cmd.OutOrStdout(), tree, out.dump)
		},
	}
	out.register(cmd)
	cmd.Flags().IntVar(&start, "start", 0, "character offset of the sentence in its document")
	return cmd
}

func newRecordCmd() *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "record [file.json]",
		Short: "Parse a record carrying sentence and token views",
		Long: `Parse a JSON record ({"id","rawText","labelViews"}) and print its forest.

Reads stdin when no file is given. View names come from
SYNTAXD_PARSER_SENTENCE_VIEW and SYNTAXD_PARSER_TOKEN_VIEW.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			var rec forest.Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			return parseRecord(cmd, &out, rec)
		},
	}
	out.register(cmd)
	return cmd
}

func newFileCmd() *cobra.Command {
	var out outputFlags
	var fold, pdftotext bool

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Extract text from a document, split it into sentences and parse it",
		Long: `Extract text from a .txt, .md, .html, .pdf, .docx or .csv file, mark
sentence and token boundaries with the built-in boundary annotator, and
print the resulting forest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			x, err := textract.ForFile(path, textract.Options{PDFFallbackPdftotext: pdftotext})
			if err != nil {
				return err
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			text, err := x.Extract(bytes.NewReader(data), path)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			if fold {
				text = textract.FoldASCII(text)
			}
			// View names must match what the annotator reads.
			svc, cfg, err := newService(cmd.Context(), &out)
			if err != nil {
				return err
			}
			defer svc.Close()

			rec := boundary.Record(filepath.Base(path), text, cfg.Parser.SentenceView, cfg.Parser.TokenView)
			f, err := svc.Annotator.ParseRecord(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return writeForest(cmd.OutOrStdout(), f, out.dump)
		},
	}
	out.register(cmd)
	cmd.Flags().BoolVar(&fold, "fold", true, "fold typographic punctuation and accents to ASCII")
	cmd.Flags().BoolVar(&pdftotext, "pdftotext", true, "fall back to pdftotext for PDFs the built-in reader cannot handle")
	return cmd
}

func parseRecord(cmd *cobra.Command, out *outputFlags, rec forest.Record) error {
	svc, _, err := newService(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer svc.Close()

	f, err := svc.Annotator.ParseRecord(cmd.Context(), rec)
	if err != nil {
		return err
	}
	return writeForest(cmd.OutOrStdout(), f, out.dump)
}
