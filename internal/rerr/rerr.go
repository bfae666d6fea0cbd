// Package rerr defines the stable error-code taxonomy shared by every
// component, and the coded error type every public operation returns.
// It is a leaf package precisely so components that error across
// boundaries (store, index, plugin, scheduler, core) can all depend on
// it without forming an import cycle.
package rerr

import "fmt"

// Code is one of the stable error identifiers a caller can switch on.
// Values are part of the external contract: never renumber or rename one
// once shipped.
type Code string

const (
	CodeInvalidInput        Code = "invalid_input"
	CodeNoteNotFound        Code = "note_not_found"
	CodeNoteIDMismatch      Code = "note_id_mismatch"
	CodeInvalidFormat       Code = "invalid_format"
	CodeSectionNotFound     Code = "section_not_found"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeProposalNotFound    Code = "proposal_not_found"
	CodePluginNotFound      Code = "plugin_not_found"
	CodePluginNotEnabled    Code = "plugin_not_enabled"
	CodePluginRegisterFail  Code = "plugin_register_failed"
	CodePluginUntrustedPath Code = "plugin_untrusted_path"
	CodePluginActionTimeout Code = "plugin_action_timeout"
	CodePluginOutputTooBig  Code = "plugin_output_too_large"
	CodePluginTrustViolate  Code = "plugin_trust_violation"
	CodePluginRunFailed     Code = "plugin_run_failed"
	CodeEntityNotFound      Code = "entity_not_found"
	CodeEntitySchemaMismatc Code = "entity_schema_mismatch"
	CodeEntitySaveFailed    Code = "entity_save_failed"
	CodeDailyNoteIDConflict Code = "daily_note_id_conflict"
	CodeMissingNamespace    Code = "missing_namespace"
	CodeUnauthorized        Code = "unauthorized"
	CodeTemplateNotFound    Code = "template_not_found"
	CodeMigrationFailed     Code = "migration_failed"
	CodeIOFailure           Code = "io_failure"
)

// Error is the coded error type returned by every public operation. It
// wraps an optional cause so callers can still errors.Is/As through to
// driver-level failures (e.g. a *fs.PathError).
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Err builds a coded error with no underlying cause.
func Err(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a coded error around an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the Code of err if it (or something it wraps) is a
// *Error, and CodeIOFailure otherwise. Useful at adapter boundaries that
// need an exit code or HTTP status from an arbitrary error.
func CodeOf(err error) Code {
	var ce *Error
	if asError(err, &ce) {
		return ce.Code
	}
	return CodeIOFailure
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
