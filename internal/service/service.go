// Package service assembles the annotator and its collaborators from
// configuration. Both binaries build their runtime through it.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/syntaxd/internal/activity"
	"github.com/dgallion1/syntaxd/internal/annotate"
	"github.com/dgallion1/syntaxd/internal/config"
	"github.com/dgallion1/syntaxd/internal/engine"
	"github.com/dgallion1/syntaxd/internal/engine/pcfg"
	"github.com/dgallion1/syntaxd/internal/engine/remote"
	"github.com/dgallion1/syntaxd/internal/pipeline"
	"github.com/dgallion1/syntaxd/internal/stats"
	"github.com/dgallion1/syntaxd/internal/store"
	"github.com/dgallion1/syntaxd/internal/textcheck"
	"github.com/dgallion1/syntaxd/internal/textract"
)

const purgeInterval = time.Hour

// Service is the assembled annotation runtime.
type Service struct {
	Annotator *annotate.Annotator
	Stats     *stats.ParserStats
	Tracker   *activity.Tracker

	purger  *store.Postgres
	closers []func()
	log     *slog.Logger
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// New builds the engine, cache and annotator described by cfg.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Service, error) {
	s := &Service{
		Stats:   stats.New(cfg.Parser.StatsWindow),
		Tracker: activity.New(),
		log:     log,
	}

	eng, err := s.newEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	cache, err := s.newCache(ctx, cfg.Store)
	if err != nil {
		s.Close()
		return nil, err
	}
	checker, err := textcheck.New(cfg.Parser.Encoding)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("parser.encoding: %w", err)
	}
	opts, err := AnnotateOptions(cfg.Parser)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Annotator, err = annotate.New(eng, opts,
		annotate.WithChecker(checker),
		annotate.WithTracker(s.Tracker),
		annotate.WithCache(cache),
		annotate.WithStats(s.Stats),
		annotate.WithLogger(log),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Info("annotator ready",
		"engine", s.Annotator.SourceIdentifier(),
		"cache", cfg.Store.Backend,
		"policy", opts.Policy,
		"encoding", checker.Target(),
	)
	return s, nil
}

// AnnotateOptions maps parser settings onto annotator options.
func AnnotateOptions(cfg config.ParserConfig) (annotate.Options, error) {
	policy, err := annotate.ParsePolicy(cfg.FailurePolicy)
	if err != nil {
		return annotate.Options{}, err
	}
	return annotate.Options{
		SentenceView:      cfg.SentenceView,
		TokenView:         cfg.TokenView,
		MaxSentenceLength: cfg.MaxSentenceLength,
		SelfTokenize:      cfg.Tokenize,
		Policy:            policy,
		ShiftSpans:        cfg.ShiftSpans,
	}, nil
}

// PipelineConfig maps settings onto the async pipeline.
func PipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		WorkerCount:  cfg.Pipeline.WorkerCount,
		MaxQueueSize: cfg.Pipeline.MaxQueueSize,
		JobTTL:       cfg.Pipeline.JobTTL,
		SentenceView: cfg.Parser.SentenceView,
		TokenView:    cfg.Parser.TokenView,
		FoldASCII:    cfg.Pipeline.FoldASCII,
		Extract:      textract.Options{PDFFallbackPdftotext: cfg.Pipeline.PDFFallbackPdftotext},
	}
}

func (s *Service) newEngine(cfg config.EngineConfig) (engine.Engine, error) {
	switch cfg.Kind {
	case "remote":
		c := remote.NewClient(cfg.RemoteURL,
			remote.WithAPIKey(cfg.RemoteAPIKey),
			remote.WithTimeout(cfg.RemoteTimeout),
		)
		s.closers = append(s.closers, c.Close)
		return c, nil
	case "pcfg", "":
		var g *pcfg.Grammar
		var err error
		if cfg.GrammarFile != "" {
			g, err = pcfg.LoadFile(cfg.GrammarFile)
		} else {
			g, err = pcfg.Default()
		}
		if err != nil {
			return nil, fmt.Errorf("load grammar: %w", err)
		}
		return pcfg.NewParser(g), nil
	}
	return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
}

func (s *Service) newCache(ctx context.Context, cfg config.StoreConfig) (store.ForestCache, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case "postgres":
		db, err := store.NewDB(cfg.DSN, cfg.MaxOpen, cfg.MaxIdle)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { db.Close() })
		pg := store.NewPostgres(db, cfg.TTL)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		s.purger = pg
		return pg, nil
	case "kv":
		kv := store.NewKV(cfg.KVURL, cfg.KVAPIKey, cfg.KVPrefix, cfg.TTL)
		s.closers = append(s.closers, kv.Close)
		return kv, nil
	case "none", "":
		return store.Nop{}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// RunPurge deletes expired cache rows every hour until ctx is done. It
// returns immediately for backends that expire entries themselves.
func (s *Service) RunPurge(ctx context.Context) {
	if s.purger == nil {
		return
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.purger.Purge(ctx)
			if err != nil {
				s.log.Warn("cache purge failed", "error", err)
				continue
			}
			s.log.Debug("cache purged", "rows", n)
		}
	}
}

// Close releases engine and cache connections.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
