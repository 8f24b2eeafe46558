package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"khata/internal/core"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	return rec
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentLedger)

	logger.Info("hello", FieldPartyID, 7)
	rec := lastRecord(t, &buf)
	if rec[FieldComponent] != ComponentLedger {
		t.Errorf("component = %v", rec[FieldComponent])
	}
	if rec[FieldPartyID] != float64(7) {
		t.Errorf("party_id = %v", rec[FieldPartyID])
	}

	logger.WithComponent(ComponentWorker).With(FieldMessageID, "m1").Warn("again")
	rec = lastRecord(t, &buf)
	if rec[FieldComponent] != ComponentWorker || rec[FieldMessageID] != "m1" {
		t.Errorf("record = %v", rec)
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.NewValidationError("amount", "bad"), ErrorTypeValidation},
		{core.NewNotFoundError("party", 1), ErrorTypeNotFound},
		{fmt.Errorf("wrapped: %w", core.NewStoreError("insert", errors.New("disk full"))), ErrorTypeDatabase},
		{&core.SideArtifactError{Path: "x", Err: errors.New("busy")}, ErrorTypeSideArtifact},
		{context.DeadlineExceeded, ErrorTypeTimeout},
		{errors.New("other"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestLogFields(t *testing.T) {
	e := core.PartyLedgerEntry{
		ID:      3,
		PartyID: 9,
		Kind:    core.KindDebit,
		Channel: core.ChannelCash,
		Amount:  core.MoneyFromInt(50),
		Date:    core.NewDate(2025, 1, 2),
	}
	f := NewFields().
		WithOperation(OpCreate).
		WithEntry(e).
		WithError(core.NewValidationError("note", "too long"))

	if f[FieldEntryID] != int64(3) || f[FieldAmount] != "50.00" || f[FieldDate] != "2025-01-02" {
		t.Errorf("entry fields = %v", f)
	}
	if f[FieldErrorType] != ErrorTypeValidation {
		t.Errorf("error_type = %v", f[FieldErrorType])
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length mismatch")
	}

	if g := NewFields().WithError(nil); len(g) != 0 {
		t.Errorf("nil error added fields: %v", g)
	}
}

func TestLogOperationLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"success", nil, "DEBUG"},
		{"rejected", core.NewValidationError("amount", "bad"), "WARN"},
		{"missing", core.NewNotFoundError("party", 4), "WARN"},
		{"failed", core.NewStoreError("commit", errors.New("locked")), "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sl := NewStructuredLogger(jsonLogger(&buf, ComponentLedger))
			sl.LogOperation(context.Background(), "add_receipt", time.Now(), tt.err, nil)

			rec := lastRecord(t, &buf)
			if rec["level"] != tt.level {
				t.Errorf("level = %v, want %s", rec["level"], tt.level)
			}
			if rec[FieldOperation] != "add_receipt" {
				t.Errorf("operation = %v", rec[FieldOperation])
			}
			if rec[FieldSuccess] != (tt.err == nil) {
				t.Errorf("success = %v", rec[FieldSuccess])
			}
		})
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentWorker)
	ctx := WithContext(context.Background(), logger)

	if FromContext(ctx) != logger {
		t.Fatal("FromContext did not return the stored logger")
	}
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("fallback logger = %+v", l)
	}
}
