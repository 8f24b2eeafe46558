package log

import (
	"context"
	"errors"

	"khata/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldSuccess     = "success"
	FieldDuration    = "duration_ms"
	FieldPartyID     = "party_id"
	FieldPartyName   = "party_name"
	FieldEntryID     = "entry_id"
	FieldCashEntryID = "cash_entry_id"
	FieldKind        = "kind"
	FieldChannel     = "channel"
	FieldMode        = "mode"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldAnchor      = "anchor"
	FieldLastWritten = "last_written"
	FieldDays        = "days"
	FieldMessageID   = "message_id"
)

// Components defines standard component names
const (
	ComponentLedger = "ledger"
	ComponentWorker = "worker"
	ComponentAttach = "attachments"
	ComponentCLI    = "cli"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpMove      = "move"
	OpRename    = "rename"
	OpPropagate = "propagate"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeDatabase     = "database_error"
	ErrorTypeTimeout      = "timeout_error"
	ErrorTypeNotFound     = "not_found_error"
	ErrorTypeSideArtifact = "side_artifact_error"
	ErrorTypeInternal     = "internal_error"
)

// ErrorType classifies err for the error_type field.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrStore):
		return ErrorTypeDatabase
	case errors.Is(err, core.ErrSideArtifact):
		return ErrorTypeSideArtifact
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	}
	return ErrorTypeInternal
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error and its category.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithEntry adds ledger entry fields
func (f LogFields) WithEntry(e core.PartyLedgerEntry) LogFields {
	if e.ID != 0 {
		f[FieldEntryID] = e.ID
	}
	f[FieldPartyID] = e.PartyID
	f[FieldKind] = string(e.Kind)
	f[FieldChannel] = string(e.Channel)
	f[FieldAmount] = e.Amount.String()
	f[FieldDate] = e.Date.String()
	return f
}

// WithCashEntry adds cash book entry fields
func (f LogFields) WithCashEntry(e core.CashBookEntry) LogFields {
	if e.ID != 0 {
		f[FieldCashEntryID] = e.ID
	}
	f[FieldMode] = string(e.Mode)
	f[FieldAmount] = e.Amount.String()
	f[FieldDate] = e.Date.String()
	return f
}

func (f LogFields) WithParty(id int64, name string) LogFields {
	f[FieldPartyID] = id
	if name != "" {
		f[FieldPartyName] = name
	}
	return f
}

func (f LogFields) WithDuration(ms int64, success bool) LogFields {
	f[FieldDuration] = ms
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
