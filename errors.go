package geonarrative

import (
	"errors"
	"fmt"
)

// Standard error values for engine failure classes.
var (
	// ErrInvalidInput is wrapped by every *InputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyResult means every cluster was dissolved by the size filter.
	ErrEmptyResult = errors.New("empty clustering result")
	// ErrInsufficientData marks a metric that could not be computed.
	ErrInsufficientData = errors.New("insufficient data for metric")
)

// InputError reports malformed input. Runs that hit one produce no partial results.
type InputError struct {
	ArticleID string
	Field     string
	Reason    string
}

func (e *InputError) Error() string {
	if e.ArticleID != "" {
		return fmt.Sprintf("invalid input: article %q: %s: %s", e.ArticleID, e.Field, e.Reason)
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
	}
	return "invalid input: " + e.Reason
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func inputErrorf(articleID, field, format string, args ...any) *InputError {
	return &InputError{ArticleID: articleID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EmptyResultError carries the diagnostics of an empty clustering result.
type EmptyResultError struct {
	Reason string
}

func (e *EmptyResultError) Error() string {
	return "empty clustering result: " + e.Reason
}

func (e *EmptyResultError) Unwrap() error { return ErrEmptyResult }

// MetricError records why a quality metric is null.
type MetricError struct {
	Metric string
	Reason string
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("%s: %s", e.Metric, e.Reason)
}

func (e *MetricError) Unwrap() error { return ErrInsufficientData }

// IsInputError reports whether err was caused by malformed input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
