package logging

import (
	"context"
	"log/slog"
	"os"
)

// Options configures Setup.
type Options struct {
	// FilePath, if non-empty, receives JSON-formatted logs via a RotatingFile.
	FilePath string
	// Level is the minimum level logged to both stderr and the file.
	Level slog.Level
	// MaxSize and MaxBackups tune the file rotation policy; zero keeps the
	// RotatingFile defaults.
	MaxSize    int64
	MaxBackups int
}

// Setup builds the process-wide structured logger: human-readable text to
// stderr always, plus JSON to a rotating file when FilePath is set. It
// returns the RotatingFile (if any) so the caller can Close it on shutdown.
func Setup(opts Options) (*slog.Logger, *RotatingFile, error) {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, handlerOpts)}

	var rotating *RotatingFile
	if opts.FilePath != "" {
		var fileOpts []Option
		if opts.MaxSize > 0 {
			fileOpts = append(fileOpts, WithMaxSize(opts.MaxSize))
		}
		if opts.MaxBackups > 0 {
			fileOpts = append(fileOpts, WithMaxBackups(opts.MaxBackups))
		}

		rf, err := NewRotatingFile(opts.FilePath, fileOpts...)
		if err != nil {
			return nil, nil, err
		}
		rotating = rf
		handlers = append(handlers, slog.NewJSONHandler(rf, handlerOpts))
	}

	return slog.New(multiHandler{handlers: handlers}), rotating, nil
}

// multiHandler fans a single log record out to every wrapped handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return multiHandler{handlers: next}
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return multiHandler{handlers: next}
}
