package research

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedQuery rejects unusable topic input before any fetch runs.
var ErrMalformedQuery = errors.New("malformed query")

// FailureReason codes why a source produced nothing. They surface verbatim
// in emitted stats.
type FailureReason string

const (
	ReasonCapabilityUnavailable FailureReason = "capability_unavailable"
	ReasonFetchTimeout          FailureReason = "fetch_timeout"
	ReasonFetchNetworkError     FailureReason = "fetch_network_error"
)

// SourceFailure records one source's non-fatal failure. The query still
// succeeds as long as another source delivers.
type SourceFailure struct {
	Source Platform      `json:"source"`
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

func (f SourceFailure) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s", f.Source, f.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Source, f.Reason, f.Detail)
}

// AllSourcesFailedError is fatal: no usable source completed. Its message
// names every source with its reason so the CLI diagnostic is complete.
type AllSourcesFailedError struct {
	Failures []SourceFailure
}

func (e *AllSourcesFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	if len(parts) == 0 {
		return "all sources failed"
	}
	return "all sources failed: " + strings.Join(parts, "; ")
}
