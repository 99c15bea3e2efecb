package evidence

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProfile        = errors.New("unknown profile")
	ErrAllSourcesUnavailable = errors.New("all sources unavailable")
)

// Failure reasons surfaced to callers of Aggregate.
const (
	ReasonUnknownProfile        = "unknown_profile"
	ReasonAllSourcesUnavailable = "all_sources_unavailable"
)

// SourceUnavailableError reports that one source could not supply a payload.
// It is recoverable: aggregation continues without that source.
type SourceUnavailableError struct {
	Source SourceName
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as a SourceUnavailableError for source unless it
// already is one.
func Unavailable(source SourceName, err error) error {
	if err == nil {
		return nil
	}
	var sue *SourceUnavailableError
	if errors.As(err, &sue) {
		return err
	}
	return &SourceUnavailableError{Source: source, Err: err}
}

// MalformedPayloadError reports a payload with nothing usable in it.
type MalformedPayloadError struct {
	Source SourceName
	Detail string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %s", e.Source, e.Detail)
}

// UnknownProfileError is returned when region and crop have no identity mapping.
type UnknownProfileError struct {
	Region string
	Crop   string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("no identity mapping for region %q crop %q", e.Region, e.Crop)
}

func (e *UnknownProfileError) Unwrap() error { return ErrUnknownProfile }

// AggregationFailedError is the only fatal outcome of Aggregate.
type AggregationFailedError struct {
	Reason string
	Err    error
}

func (e *AggregationFailedError) Error() string {
	return fmt.Sprintf("aggregation failed (%s): %v", e.Reason, e.Err)
}

func (e *AggregationFailedError) Unwrap() error { return e.Err }
