// Package logging sets up structured logging for the command line tool.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	slogseq "github.com/sokkalf/slog-seq"
)

// multiHandler forwards log records to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// Config holds logger settings.
type Config struct {
	Level  slog.Level // minimum level
	SeqURL string     // Seq ingestion endpoint, empty disables Seq
}

// ConfigFromEnv reads ATTRINDEX_LOG_LEVEL and ATTRINDEX_SEQ_URL.
func ConfigFromEnv() (Config, error) {
	cfg := Config{Level: slog.LevelInfo, SeqURL: os.Getenv("ATTRINDEX_SEQ_URL")}
	if s := strings.TrimSpace(os.Getenv("ATTRINDEX_LOG_LEVEL")); s != "" {
		if err := cfg.Level.UnmarshalText([]byte(s)); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Setup creates a logger writing text to stderr and, if configured, to
// Seq. The returned function flushes and closes the Seq sink.
func Setup(cfg Config) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	console := slog.NewTextHandler(os.Stderr, opts)

	if cfg.SeqURL == "" {
		return slog.New(console), func() {}
	}

	_, seqHandler := slogseq.NewLogger(
		cfg.SeqURL,
		slogseq.WithBatchSize(50),
		slogseq.WithFlushInterval(500*time.Millisecond),
		slogseq.WithHandlerOptions(opts),
	)

	// If Seq is not available, use console only
	if seqHandler == nil {
		return slog.New(console), func() {}
	}

	logger := slog.New(&multiHandler{
		handlers: []slog.Handler{console, seqHandler},
	})
	return logger, func() { seqHandler.Close() }
}
