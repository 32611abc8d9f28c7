// Package annotate turns sentences and records into parse trees and
// forests: it segments documents, runs the engine sentence by sentence,
// flattens each result and applies the failure policy.
package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dgallion1/syntaxd/internal/activity"
	"github.com/dgallion1/syntaxd/internal/engine"
	"github.com/dgallion1/syntaxd/internal/flatten"
	"github.com/dgallion1/syntaxd/internal/forest"
	"github.com/dgallion1/syntaxd/internal/headfind"
	"github.com/dgallion1/syntaxd/internal/segment"
	"github.com/dgallion1/syntaxd/internal/stats"
	"github.com/dgallion1/syntaxd/internal/store"
	"github.com/dgallion1/syntaxd/internal/textcheck"
)

// Policy decides what a sentence failure does to the rest of a record.
type Policy string

const (
	// PolicyStrict fails the whole record on the first sentence failure.
	PolicyStrict Policy = "strict"
	// PolicyPartial substitutes an empty tree and keeps going.
	PolicyPartial Policy = "partial"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(s)); p {
	case PolicyStrict, PolicyPartial:
		return p, nil
	case "":
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// Options carries the parser settings.
type Options struct {
	SentenceView      string
	TokenView         string
	MaxSentenceLength int
	// SelfTokenize hands the engine raw sentence text instead of the
	// record's token view.
	SelfTokenize bool
	Policy       Policy
	ShiftSpans   bool
}

// DefaultOptions matches the service defaults.
func DefaultOptions() Options {
	return Options{
		SentenceView:      "sentences",
		TokenView:         "tokens",
		MaxSentenceLength: 100,
		SelfTokenize:      true,
		Policy:            PolicyStrict,
		ShiftSpans:        true,
	}
}

// Annotator is safe for concurrent use provided the engine is.
type Annotator struct {
	engine    engine.Engine
	flattener *flatten.Flattener
	checker   *textcheck.Checker
	tracker   *activity.Tracker
	cache     store.ForestCache
	stats     *stats.ParserStats
	opts      Options
	log       *slog.Logger
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithChecker replaces the default ASCII encoding check.
func WithChecker(c *textcheck.Checker) Option {
	return func(a *Annotator) { a.checker = c }
}

func WithTracker(t *activity.Tracker) Option {
	return func(a *Annotator) { a.tracker = t }
}

func WithCache(c store.ForestCache) Option {
	return func(a *Annotator) { a.cache = c }
}

func WithStats(s *stats.ParserStats) Option {
	return func(a *Annotator) { a.stats = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Annotator) { a.log = l }
}

func WithHeadFinder(h headfind.HeadFinder) Option {
	return func(a *Annotator) { a.flattener.Heads = h }
}

func New(eng engine.Engine, opts Options, options ...Option) (*Annotator, error) {
	checker, err := textcheck.New("ascii")
	if err != nil {
		return nil, err
	}
	if opts.MaxSentenceLength <= 0 {
		return nil, fmt.Errorf("max sentence length must be positive, got %d", opts.MaxSentenceLength)
	}
	if opts.Policy == "" {
		opts.Policy = PolicyStrict
	}
	a := &Annotator{
		engine:    eng,
		flattener: &flatten.Flattener{Heads: headfind.NewCollins(), ShiftSpans: opts.ShiftSpans},
		checker:   checker,
		tracker:   activity.New(),
		cache:     store.Nop{},
		opts:      opts,
		log:       slog.Default(),
	}
	for _, o := range options {
		o(a)
	}
	return a, nil
}

// Ping always reports the service as alive.
func (a *Annotator) Ping() bool { return true }

func (a *Annotator) Name() string      { return a.engine.Info().Name }
func (a *Annotator) ShortName() string { return a.engine.Info().ShortName }
func (a *Annotator) Version() string   { return a.engine.Info().Version }

// SourceIdentifier is stamped on every tree and forest.
func (a *Annotator) SourceIdentifier() string {
	info := a.engine.Info()
	return info.ShortName + "-" + info.Version
}

// LastAnnotationTime returns when the last annotation call started or
// finished, or the zero time if none has run.
func (a *Annotator) LastAnnotationTime() time.Time { return a.tracker.Last() }

// Options returns the parser settings in use.
func (a *Annotator) Options() Options { return a.opts }

// NormalizeScore converts a joint probability into a length-normalized log
// score. ok is false when rawProb is not positive.
func NormalizeScore(rawProb float64, length int) (score float64, ok bool) {
	if rawProb <= 0 {
		return 0, false
	}
	return NormalizeLogScore(math.Log(rawProb), length), true
}

// NormalizeLogScore is NormalizeScore for a probability already in natural
// log space.
func NormalizeLogScore(logProb float64, length int) float64 {
	return logProb - float64(length)*math.Log2(600)
}

// ParseSentence parses raw sentence text. Spans are shifted by start when
// span shifting is enabled.
func (a *Annotator) ParseSentence(ctx context.Context, text string, start int) (*forest.Tree, error) {
	a.tracker.Touch()
	defer a.tracker.Touch()

	if err := a.checker.Check(text); err != nil {
		return nil, a.fail("sentence", classify(err))
	}
	tree, err := a.parseTokens(ctx, a.engine.Tokenize(text), start)
	if err != nil {
		return nil, a.fail("sentence", classify(err))
	}
	return tree, nil
}

// ParseTokenizedSentence parses tokens as given. Token offsets are taken as
// relative to start.
func (a *Annotator) ParseTokenizedSentence(ctx context.Context, tokens []engine.Token, start int) (*forest.Tree, error) {
	a.tracker.Touch()
	defer a.tracker.Touch()

	texts := make([]string, len(tokens))
	for i, tok := range tokens {
		texts[i] = tok.Text
	}
	if err := a.checker.CheckAll(texts...); err != nil {
		return nil, a.fail("tokens", classify(err))
	}
	tree, err := a.parseTokens(ctx, tokens, start)
	if err != nil {
		return nil, a.fail("tokens", classify(err))
	}
	return tree, nil
}

// ParseRecord parses every sentence of rec in document order. Under the
// strict policy a sentence failure returns the forest built so far together
// with the error.
func (a *Annotator) ParseRecord(ctx context.Context, rec forest.Record) (*forest.Forest, error) {
	a.tracker.Touch()
	defer a.tracker.Touch()

	log := a.log.With("record_id", rec.ID)
	if err := a.checker.Check(rec.RawText); err != nil {
		return nil, a.failWith(log, "record", classify(err))
	}

	sentences := rec.View(a.opts.SentenceView).Labels
	var tokens []forest.Span
	if !a.opts.SelfTokenize {
		tokens = rec.View(a.opts.TokenView).Labels
	}
	inputs, err := segment.Segment(rec.RawText, sentences, tokens, a.opts.SelfTokenize)
	if err != nil {
		return nil, a.failWith(log, "record", classify(err))
	}

	key := a.cacheKey(rec.RawText, sentences, tokens)
	if cached, ok, err := a.cache.Get(ctx, key); err != nil {
		log.Warn("forest cache read failed", "error", err)
	} else if ok {
		log.Debug("forest cache hit", "sentences", len(cached.Trees))
		return cached, nil
	}

	source := a.SourceIdentifier()
	out := &forest.Forest{
		Trees:   make([]forest.Tree, 0, len(inputs)),
		RawText: rec.RawText,
		Source:  source,
	}
	for _, in := range inputs {
		tree, err := a.parseInput(ctx, in)
		if err == nil {
			out.Trees = append(out.Trees, *tree)
			continue
		}
		ae := classify(err)
		if a.opts.Policy == PolicyStrict || ae.Kind == KindInternal {
			return out, a.failWith(log.With("sentence", in.Index), "record", ae)
		}
		log.Warn("sentence failed, continuing", "sentence", in.Index, "kind", ae.Kind, "reason", ae.Reason, "error", ae.Err)
		out.Trees = append(out.Trees, forest.Tree{Source: source})
		out.Failures = append(out.Failures, forest.SentenceFailure{
			Sentence: in.Index,
			Span:     in.Span,
			Kind:     string(ae.Kind),
			Reason:   ae.Reason,
		})
	}

	if len(out.Failures) == 0 {
		if err := a.cache.Put(ctx, key, out); err != nil {
			log.Warn("forest cache write failed", "error", err)
		}
	}
	log.Info("record parsed", "sentences", len(out.Trees), "failures", len(out.Failures))
	return out, nil
}

func (a *Annotator) parseInput(ctx context.Context, in segment.Input) (*forest.Tree, error) {
	if a.opts.SelfTokenize {
		return a.parseTokens(ctx, a.engine.Tokenize(in.Text), in.Base)
	}
	return a.parseTokens(ctx, in.Tokens, in.Base)
}

func (a *Annotator) parseTokens(ctx context.Context, tokens []engine.Token, base int) (*forest.Tree, error) {
	n := len(tokens)
	if n == 0 {
		return nil, rejected(ReasonZeroLength, nil)
	}
	if n > a.opts.MaxSentenceLength {
		return nil, rejected(ReasonTooLong, fmt.Errorf("%d tokens exceeds limit of %d", n, a.opts.MaxSentenceLength))
	}

	start := time.Now()
	res, err := a.engine.Parse(ctx, tokens)
	if a.stats != nil {
		a.stats.Record(time.Since(start), n, err == nil)
	}
	if err != nil {
		return nil, classify(err)
	}
	if res == nil || res.Tree == nil {
		return nil, &Error{Kind: KindNoParse, Reason: ReasonParseFailed}
	}
	logp, ok := res.LogProbability()
	if !ok {
		return nil, &Error{Kind: KindNoParse, Reason: ReasonNoProbability, Err: fmt.Errorf("probability %g", res.Prob)}
	}
	score := NormalizeLogScore(logp, n)

	tree := a.flattener.Tree(res.Tree, base)
	tree.Score = score
	tree.Source = a.SourceIdentifier()
	if a.log.Enabled(ctx, slog.LevelDebug) {
		var sb strings.Builder
		tree.Dump(&sb)
		a.log.Debug("parsed sentence", "tokens", n, "tree", sb.String())
	}
	return &tree, nil
}

// cacheKey covers everything that shapes the forest: text, boundaries,
// mode, engine and policy.
func (a *Annotator) cacheKey(text string, sentences, tokens []forest.Span) string {
	s, _ := json.Marshal(sentences)
	t, _ := json.Marshal(tokens)
	mode := "tokens"
	if a.opts.SelfTokenize {
		mode = "raw"
	}
	return store.Key(text, string(s), string(t), mode, a.SourceIdentifier(),
		string(a.opts.Policy), fmt.Sprint(a.opts.ShiftSpans, a.opts.MaxSentenceLength))
}

func (a *Annotator) fail(op string, ae *Error) *Error {
	return a.failWith(a.log, op, ae)
}

func (a *Annotator) failWith(log *slog.Logger, op string, ae *Error) *Error {
	log.Warn("annotation failed", "op", op, "kind", ae.Kind, "reason", ae.Reason, "error", ae.Err)
	return ae
}
