package feedback

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Score bounds, inclusive.
const (
	MinScore = 0
	MaxScore = 10
)

// Validation errors.
var (
	ErrRequired   = errors.New("required field is empty")
	ErrNotNumber  = errors.New("must be a number")
	ErrOutOfRange = fmt.Errorf("must be between %d and %d", MinScore, MaxScore)
)

// FieldError ties a validation failure to one canonical field.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e FieldError) Unwrap() error { return e.Err }

// ValidationError is returned when a submitted record is rejected.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid record: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual field errors to errors.Is / errors.As.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f
	}
	return out
}

// Has reports whether any error names field.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Validate checks one submitted record keyed by canonical name.
//
// Required fields must be non-blank. Score fields that are present must parse
// as a float within [MinScore, MaxScore]. A blank required score reports only
// ErrRequired. The returned slice is empty when the record is acceptable;
// errors are ordered by Columns.
func Validate(fields map[string]string) []FieldError {
	var errs []FieldError

	required := make(map[string]bool, len(RequiredColumns))
	for _, c := range RequiredColumns {
		required[c] = true
	}
	score := make(map[string]bool, len(ScoreColumns))
	for _, c := range ScoreColumns {
		score[c] = true
	}

	for _, c := range Columns {
		v, present := fields[c]
		v = strings.TrimSpace(v)

		if required[c] && v == "" {
			errs = append(errs, FieldError{Field: c, Err: ErrRequired})
			continue
		}
		if !score[c] || !present || v == "" {
			continue
		}

		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) {
			errs = append(errs, FieldError{Field: c, Err: ErrNotNumber})
			continue
		}
		if f < MinScore || f > MaxScore {
			errs = append(errs, FieldError{Field: c, Err: ErrOutOfRange})
		}
	}
	return errs
}

// Check wraps Validate into a single error, nil when the record is valid.
func Check(fields map[string]string) error {
	if errs := Validate(fields); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// RecordFromMap builds a Record from canonical keys. Keys that are not
// canonical column names are returned sorted in ignored.
func RecordFromMap(fields map[string]string) (rec Record, ignored []string) {
	for k, v := range fields {
		if !rec.Set(k, v) {
			ignored = append(ignored, k)
		}
	}
	sort.Strings(ignored)
	return rec, ignored
}
