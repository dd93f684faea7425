// Package errors re-exports github.com/cockroachdb/errors and declares the
// error taxonomy shared by the dispatch engine, schedule sync and the API.
//
// Classification is done with Mark so that errors.Is keeps working after any
// amount of wrapping:
//
//	return errors.Mark(errors.Wrap(err, "identity lookup"), errors.ErrLookup)
package errors

import (
	"sort"
	"strings"

	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	WithHint     = crdb.WithHint
	Mark         = crdb.Mark
)

var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllDetails = crdb.GetAllDetails
	CombineErrors = crdb.CombineErrors
)

// Sentinels. Use Mark to attach them, Is to test for them.
var (
	// ErrValidation: malformed input rejected before any state is touched.
	ErrValidation = New("validation error")
	// ErrNotReady: dispatch claim lost or subscription not in the ready state.
	ErrNotReady = New("subscription not ready")
	// ErrLookup: identity, address or message missing.
	ErrLookup = New("lookup failure")
	// ErrCollaborator: non-2xx or transport failure from a remote service.
	ErrCollaborator = New("collaborator failure")
	// ErrNotFound: a local record does not exist.
	ErrNotFound = New("not found")
)

// FieldErrors is a per-field validation report, rendered as-is in API responses.
type FieldErrors map[string][]string

// Add appends msg to the messages for field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Required records the standard missing-field message.
func (f FieldErrors) Required(field string) {
	f.Add(field, "This field is required.")
}

// Err returns nil when there are no field errors, otherwise f marked as ErrValidation.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return Mark(f, ErrValidation)
}

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(f[k], " "))
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// AsFieldErrors extracts a FieldErrors report from err, if any.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if As(err, &fe) {
		return fe, true
	}
	return nil, false
}
