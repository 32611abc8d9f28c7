package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/syntaxd/internal/annotate"
	"github.com/dgallion1/syntaxd/internal/config"
	"github.com/dgallion1/syntaxd/internal/engine/pcfg"
	"github.com/dgallion1/syntaxd/internal/forest"
	"github.com/dgallion1/syntaxd/internal/pipeline"
	"github.com/dgallion1/syntaxd/internal/stats"
)

const testKey = "test-key"

type testEnv struct {
	srv  *Server
	orch *pipeline.Orchestrator
}

func newTestServer(t *testing.T, mutate func(*annotate.Options)) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	g, err := pcfg.Default()
	require.NoError(t, err)
	opts := annotate.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	st := stats.New(time.Hour)
	a, err := annotate.New(pcfg.NewParser(g), opts, annotate.WithLogger(log), annotate.WithStats(st))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Auth.APIKey = testKey
	cfg.Pipeline.MaxUploadBytes = 1 << 20

	orch := pipeline.NewOrchestrator(pipeline.Config{
		WorkerCount:  1,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
		SentenceView: opts.SentenceView,
		TokenView:    opts.TokenView,
	}, a, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return &testEnv{srv: NewServer(a, orch, st, log, cfg), orch: orch}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth_Public(t *testing.T) {
	env := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "pcfg-0.7", body["source"])
	assert.Nil(t, body["last_annotation_time"])
}

func TestAuth(t *testing.T) {
	env := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid api key", decode[map[string]string](t, rec)["error"])
}

func TestPingAndInfo(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/api/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/info", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Syntax Constituency Parser","short_name":"pcfg","version":"0.7","source_identifier":"pcfg-0.7"}`, rec.Body.String())
}

func TestActivity(t *testing.T) {
	env := newTestServer(t, nil)

	body := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/activity", nil))
	assert.Nil(t, body["last_annotation_time"])
	assert.EqualValues(t, 0, body["last_annotation_unix_ms"])

	env.do(t, http.MethodPost, "/api/parse/sentence", sentenceRequest{Text: "The dog barked."})
	body = decode[map[string]any](t, env.do(t, http.MethodGet, "/api/activity", nil))
	assert.NotNil(t, body["last_annotation_time"])
	assert.Greater(t, body["last_annotation_unix_ms"], float64(0))
}

func TestParseSentence(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodPost, "/api/parse/sentence", sentenceRequest{Text: "The dog barked.", Start: 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[treeResponse](t, rec)
	tree := resp.Tree
	require.NotNil(t, tree)
	require.True(t, tree.HasTop)
	assert.Equal(t, len(tree.Nodes)-1, tree.Top)
	assert.Equal(t, "pcfg-0.7", tree.Source)
	assert.Less(t, tree.Score, 0.0)

	root := tree.Nodes[tree.Top]
	assert.Equal(t, "S1", root.Label)
	require.NotNil(t, root.Span)
	assert.Equal(t, forest.Span{Start: 10, End: 25}, *root.Span)
}

func TestParseSentence_Rejections(t *testing.T) {
	env := newTestServer(t, func(o *annotate.Options) { o.MaxSentenceLength = 3 })

	rec := env.do(t, http.MethodPost, "/api/parse/sentence", sentenceRequest{Text: "The dog saw the cat."})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"input too long.","kind":"input_rejected"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/parse/sentence", sentenceRequest{Text: "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"input had zero length.","kind":"input_rejected"}`, rec.Body.String())
}

func TestParseSentence_BadJSON(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodPost, "/api/parse/sentence", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseTokens(t *testing.T) {
	env := newTestServer(t, nil)
	body := `{"start":100,"tokens":[{"text":"Dogs","start":0,"end":4},{"text":"bark","start":5,"end":9}]}`
	rec := env.do(t, http.MethodPost, "/api/parse/tokens", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tree := decode[treeResponse](t, rec).Tree
	root := tree.Nodes[tree.Top]
	assert.Equal(t, forest.Span{Start: 100, End: 109}, *root.Span)
}

func sampleRecord() forest.Record {
	return forest.Record{
		ID:      "doc-1",
		RawText: "The dog barked. The cat saw the dog in the park.",
		LabelViews: map[string]forest.Labeling{
			"sentences": {Labels: []forest.Span{{Start: 0, End: 15}, {Start: 16, End: 48}}},
		},
	}
}

func TestParseRecord(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodPost, "/api/parse/record", sampleRecord())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f := decode[forest.Forest](t, rec)
	assert.Len(t, f.Trees, 2)
	assert.Equal(t, sampleRecord().RawText, f.RawText)
	assert.Equal(t, "pcfg-0.7", f.Source)
	assert.Empty(t, f.Failures)
}

func TestParseRecord_NoSentences(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodPost, "/api/parse/record", forest.Record{RawText: "Nothing marked."})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "input_rejected", body["kind"])
	assert.Nil(t, body["forest"])
}

func TestParseRecord_StrictReturnsPartialForest(t *testing.T) {
	env := newTestServer(t, func(o *annotate.Options) { o.MaxSentenceLength = 5 })
	rec := env.do(t, http.MethodPost, "/api/parse/record", sampleRecord())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[errorResponse](t, rec)
	assert.Equal(t, annotate.KindInputRejected, body.Kind)
	assert.Equal(t, annotate.ReasonTooLong, body.Error)
	require.NotNil(t, body.Forest)
	assert.Len(t, body.Forest.Trees, 1)
}

func TestParseRecord_PartialPolicy(t *testing.T) {
	env := newTestServer(t, func(o *annotate.Options) {
		o.MaxSentenceLength = 5
		o.Policy = annotate.PolicyPartial
	})
	rec := env.do(t, http.MethodPost, "/api/parse/record", sampleRecord())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f := decode[forest.Forest](t, rec)
	require.Len(t, f.Trees, 2)
	assert.Empty(t, f.Trees[1].Nodes)
	require.Len(t, f.Failures, 1)
	assert.Equal(t, 1, f.Failures[0].Sentence)
}

func waitForJob(t *testing.T, env *testEnv, id string) pipeline.JobSnapshot {
	t.Helper()
	var snap pipeline.JobSnapshot
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/jobs/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		snap = decode[pipeline.JobSnapshot](t, rec)
		return snap.Status == pipeline.StatusCompleted || snap.Status == pipeline.StatusFailed || snap.Status == pipeline.StatusPartial
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestRecordJob(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodPost, "/api/jobs/record", sampleRecord())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	accepted := decode[map[string]any](t, rec)
	id := accepted["job_id"].(string)
	assert.Equal(t, "doc-1", accepted["record_id"])
	assert.Equal(t, "/api/jobs/"+id, accepted["poll_url"])

	snap := waitForJob(t, env, id)
	assert.Equal(t, pipeline.StatusCompleted, snap.Status)
	require.NotNil(t, snap.Forest)
	assert.Len(t, snap.Forest.Trees, 2)
	assert.Equal(t, 2, snap.Progress.Sentences)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("record_id", "upload-1"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestFileJob(t *testing.T) {
	env := newTestServer(t, nil)
	body, ctype := multipartBody(t, "../../story.txt", "The dog barked. The cat slept.")
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/file", body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	accepted := decode[map[string]any](t, rec)
	assert.Equal(t, "upload-1", accepted["record_id"])

	snap := waitForJob(t, env, accepted["job_id"].(string))
	assert.Equal(t, pipeline.StatusCompleted, snap.Status, snap.Progress.Errors)
	assert.Equal(t, "story.txt", snap.Filename)
	require.NotNil(t, snap.Forest)
	assert.Len(t, snap.Forest.Trees, 2)
}

func TestFileJob_Unsupported(t *testing.T) {
	env := newTestServer(t, nil)
	body, ctype := multipartBody(t, "image.png", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/file", body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobStatus_NotFound(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodGet, "/api/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParserStats(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(t, http.MethodPost, "/api/parse/sentence", sentenceRequest{Text: "The dog barked."})

	rec := env.do(t, http.MethodGet, "/api/stats/parser", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	st := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, st["count"])
	assert.EqualValues(t, 0, body["queue_depth"])
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "story.txt", sanitizeFilename("../../story.txt"))
	assert.Equal(t, "a.md", sanitizeFilename(`C:\docs\a.md`))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Equal(t, "_.txt", sanitizeFilename("...txt"))
}
