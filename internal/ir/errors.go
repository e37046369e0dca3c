package ir

import (
	"errors"
	"fmt"
)

// Kind categorises a record problem. Kinds are shared by validator issues,
// reconciler diffs and the errors returned by the core.
type Kind string

const (
	// KindMalformedRecord: a required structural field is missing or has the wrong type.
	KindMalformedRecord Kind = "MalformedRecord"

	// KindUnknownLevel: the record's level is not registered in the policy table.
	KindUnknownLevel Kind = "UnknownLevel"

	// KindNoSections: the record has an empty section list.
	KindNoSections Kind = "NoSections"

	// KindDuplicateSection: two sections share a mondai number.
	KindDuplicateSection Kind = "DuplicateSection"

	// KindUnclassifiedSection: no policy range covers the mondai number.
	KindUnclassifiedSection Kind = "UnclassifiedSection"

	// KindCategoryMismatch: the stored part differs from the classified one.
	KindCategoryMismatch Kind = "CategoryMismatch"

	// KindUnknownCategory: a part or statistics key outside the closed category set.
	KindUnknownCategory Kind = "UnknownCategory"

	// KindStatisticsMismatch: cached statistics diverge from the recomputation.
	KindStatisticsMismatch Kind = "StatisticsMismatch"

	// KindStatisticsMissing: the record carries no statistics block.
	KindStatisticsMissing Kind = "StatisticsMissing"

	// KindRenumbered: a section's mondai number was rewritten by renumbering.
	KindRenumbered Kind = "Renumbered"
)

// Stable codes for each kind (E200-E299).
var kindCodes = map[Kind]string{
	KindMalformedRecord:     "E201",
	KindUnknownLevel:        "E202",
	KindNoSections:          "E203",
	KindDuplicateSection:    "E204",
	KindUnclassifiedSection: "E205",
	KindCategoryMismatch:    "E206",
	KindUnknownCategory:     "E207",
	KindStatisticsMismatch:  "E208",
	KindStatisticsMissing:   "E209",
	KindRenumbered:          "E210",
}

// Code returns the stable error code for the kind, or "E200" for unknown kinds.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return "E200"
}

// Fatal reports whether a problem of this kind stops processing of the record.
func (k Kind) Fatal() bool {
	return k == KindMalformedRecord || k == KindUnknownLevel
}

// Sentinel errors, one per kind the core can return. Wrap with %w.
var (
	ErrMalformedRecord     = errors.New("malformed record")
	ErrUnknownLevel        = errors.New("unknown level")
	ErrUnclassifiedSection = errors.New("unclassified section")
	ErrDuplicateSection    = errors.New("duplicate section")
	ErrStatisticsMismatch  = errors.New("statistics mismatch")
	ErrUnknownCategory     = errors.New("unknown category")
)

var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrMalformedRecord, KindMalformedRecord},
	{ErrUnknownLevel, KindUnknownLevel},
	{ErrUnclassifiedSection, KindUnclassifiedSection},
	{ErrDuplicateSection, KindDuplicateSection},
	{ErrStatisticsMismatch, KindStatisticsMismatch},
	{ErrUnknownCategory, KindUnknownCategory},
}

// RecordError is a problem tied to one record, optionally to one field of it.
type RecordError struct {
	Kind     Kind
	RecordID string
	Field    string
	Err      error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	prefix := e.Kind.Code()
	if e.RecordID != "" {
		prefix = fmt.Sprintf("%s %s", prefix, e.RecordID)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

// Unwrap returns the wrapped sentinel or cause.
func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError wraps the kind's sentinel with a formatted detail message.
func NewRecordError(kind Kind, recordID, field, format string, args ...any) *RecordError {
	detail := fmt.Sprintf(format, args...)
	var err error = errors.New(detail)
	for _, s := range sentinelKinds {
		if s.kind == kind {
			err = fmt.Errorf("%w: %s", s.err, detail)
			break
		}
	}
	return &RecordError{Kind: kind, RecordID: recordID, Field: field, Err: err}
}

// KindOf returns the kind carried by err, looking through wrapping.
// Returns "" when err carries no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var re *RecordError
	if errors.As(err, &re) {
		return re.Kind
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return ""
}

// IsFatal reports whether err stops processing of its record.
func IsFatal(err error) bool {
	return KindOf(err).Fatal()
}
