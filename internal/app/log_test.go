package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLwHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123/Ingest",
			level:   slog.LevelInfo,
			message: "run reconciled",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123/Ingest\trun reconciled\n",
		},
		{
			name:    "warn level",
			opID:    "op-456/Prune",
			level:   slog.LevelWarn,
			message: "run past retention but not yet reconciled, keeping",
			want:    "2024-06-15T14:30:45Z\tWARN\top-456/Prune\trun past retention but not yet reconciled, keeping\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789/Ingest",
			level:   slog.LevelInfo,
			message: "run pruned",
			attrs:   []slog.Attr{slog.String("run", "20240101T120000Z"), slog.Int("pages", 4)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789/Ingest\trun pruned\trun=20240101T120000Z\tpages=4\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &lwHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestLwHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &lwHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "archive")}).(*lwHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("run", "20240101T120000Z"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=archive") {
		t.Errorf("expected pre-set attr component=archive, got: %q", got)
	}
	if !strings.Contains(got, "run=20240101T120000Z") {
		t.Errorf("expected record attr, got: %q", got)
	}

	if len(h.attrs) != 0 {
		t.Errorf("original handler attrs modified: got %d, want 0", len(h.attrs))
	}
}

func TestLwHandler_Enabled(t *testing.T) {
	h := &lwHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-op")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
