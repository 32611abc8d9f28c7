package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/syntaxd/internal/forest"
)

func sampleForest() *forest.Forest {
	var tree forest.Tree
	tree.SetNodes([]forest.Node{
		{Label: "NN", Span: &forest.Span{Start: 0, End: 4}},
		{Label: "NP", Span: &forest.Span{Start: 0, End: 4}, Children: map[int]string{0: forest.HeadLabel}},
	})
	tree.Score = -12.5
	tree.Source = "pcfg-0.7"
	return &forest.Forest{Trees: []forest.Tree{tree}, RawText: "dogs", Source: "pcfg-0.7"}
}

func TestKey(t *testing.T) {
	a := Key("dogs bark", "sentences", "tokens", "raw")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("dogs bark", "sentences", "tokens", "raw"))
	assert.NotEqual(t, a, Key("dogs bark", "sentences", "tokens", "tokenized"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestNop(t *testing.T) {
	var c ForestCache = Nop{}
	require.NoError(t, c.Put(context.Background(), "k", sampleForest()))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour, 10)

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "k", sampleForest()))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleForest(), got)
}

func TestMemory_CopiesForests(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour, 10)

	in := sampleForest()
	require.NoError(t, m.Put(ctx, "k", in))
	in.Trees[0].Nodes[1].Children[0] = ""
	in.Trees[0].Nodes[0].Span.End = 99

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleForest(), got)

	got.Trees[0].Nodes[1].Children[5] = forest.HeadLabel
	got.Trees = append(got.Trees[:0], forest.Tree{})
	again, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, sampleForest(), again)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10*time.Millisecond, 10)
	require.NoError(t, m.Put(ctx, "k", sampleForest()))
	time.Sleep(25 * time.Millisecond)
	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_BoundedSize(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour, 2)
	require.NoError(t, m.Put(ctx, "a", sampleForest()))
	time.Sleep(time.Millisecond)
	require.NoError(t, m.Put(ctx, "b", sampleForest()))
	require.NoError(t, m.Put(ctx, "c", sampleForest()))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok, "oldest entry evicted")
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
}

// fakeKV mimics the pathstore /kv/{key} endpoints.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer kv-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/kv/")
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.data[key] = req.Value
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		v, ok := f.data[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"key_path": key, "value": v})
	}
}

func TestKV_RoundTrip(t *testing.T) {
	fake := &fakeKV{data: map[string]json.RawMessage{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	kv := NewKV(srv.URL, "kv-key", "/syntaxd/forests/", time.Hour)
	defer kv.Close()

	_, ok, err := kv.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, "abc", sampleForest()))
	fake.mu.Lock()
	assert.Contains(t, fake.data, "syntaxd/forests/abc")
	fake.mu.Unlock()

	got, ok, err := kv.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleForest(), got)
}

func TestKV_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	kv := NewKV(srv.URL, "", "", 0)
	_, _, err := kv.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, kv.Put(context.Background(), "k", sampleForest()))
}

func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("SYNTAXD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SYNTAXD_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(dsn, 2, 1)
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(db, time.Hour)
	require.NoError(t, p.Migrate(ctx))

	key := Key(t.Name(), time.Now().String())
	_, ok, err := p.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Put(ctx, key, sampleForest()))
	got, ok, err := p.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleForest(), got)

	_, err = p.Purge(ctx)
	require.NoError(t, err)
}
