package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/syntaxd/internal/forest"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SYNTAXD_STORE_BACKEND", "none")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSentence_JSON(t *testing.T) {
	out, err := run(t, "", "sentence", "--start", "5", "The", "dog", "barked.")
	require.NoError(t, err)

	var tree forest.Tree
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	root, ok := tree.Root()
	require.True(t, ok)
	assert.Equal(t, "S1", root.Label)
	assert.Equal(t, forest.Span{Start: 5, End: 20}, *root.Span)
}

func TestSentence_DumpFromStdin(t *testing.T) {
	out, err := run(t, "The dog barked.\n", "sentence", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, `tree source="pcfg-0.7"`)
	assert.Contains(t, out, "S1 (0,15)")
}

func TestSentence_Rejected(t *testing.T) {
	t.Setenv("SYNTAXD_PARSER_MAX_SENTENCE_LENGTH", "2")
	_, err := run(t, "", "sentence", "The dog barked.")
	assert.ErrorContains(t, err, "input too long.")
}

func TestRecord_FromFile(t *testing.T) {
	rec := forest.Record{
		ID:      "r1",
		RawText: "Dogs bark. Cats sleep.",
		LabelViews: map[string]forest.Labeling{
			"sentences": {Labels: []forest.Span{{Start: 0, End: 10}, {Start: 11, End: 22}}},
		},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "rec.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := run(t, "", "record", path)
	require.NoError(t, err)
	var f forest.Forest
	require.NoError(t, json.Unmarshal([]byte(out), &f))
	assert.Len(t, f.Trees, 2)
	assert.Equal(t, rec.RawText, f.RawText)
}

func TestRecord_PartialPolicyFlag(t *testing.T) {
	t.Setenv("SYNTAXD_PARSER_MAX_SENTENCE_LENGTH", "3")
	in := `{"rawText":"Dogs bark. The big cats sleep.","labelViews":{"sentences":{"labels":[{"start":0,"end":10},{"start":11,"end":30}]}}}`

	_, err := run(t, in, "record")
	assert.Error(t, err)

	out, err := run(t, in, "record", "--policy", "partial", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, "trees=2 failures=1")
	assert.Contains(t, out, "failed sentence 1 (11,30): input too long.")
}

func TestFile_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n\nThe dog barked. The cat slept.\n"), 0o600))

	out, err := run(t, "", "file", path)
	require.NoError(t, err)
	var f forest.Forest
	require.NoError(t, json.Unmarshal([]byte(out), &f))
	assert.Len(t, f.Trees, 3)
	assert.Equal(t, "Notes\n\nThe dog barked. The cat slept.", f.RawText)
}

func TestFile_Unsupported(t *testing.T) {
	_, err := run(t, "", "file", "picture.png")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	out, err := run(t, "", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "source:   pcfg-0.7")
	assert.Contains(t, out, "policy:   strict")
}

func TestGrammar(t *testing.T) {
	out, err := run(t, "", "grammar")
	require.NoError(t, err)
	assert.Contains(t, out, "built-in: ok, start=S1")

	path := filepath.Join(t.TempDir(), "bad.pcfg")
	require.NoError(t, os.WriteFile(path, []byte("S -> NP\n"), 0o600))
	_, err = run(t, "", "grammar", path)
	assert.Error(t, err)
}
