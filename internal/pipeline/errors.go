package pipeline

import "errors"

var (
	// ErrUnknownFormat is returned when a batch is tagged with an unsupported SourceFormat.
	ErrUnknownFormat = errors.New("unknown source format")

	// ErrMissingJoinKey means one side of the enrichment join lacks the supply
	// source column. The run must stop: enriching would silently produce unknowns.
	ErrMissingJoinKey = errors.New("enrichment join key column missing")

	// ErrDuplicateReferenceKey means the targets table lists a supply source twice,
	// which would duplicate transaction rows in the join.
	ErrDuplicateReferenceKey = errors.New("duplicate supply source in reference table")

	// ErrReferenceNotFound means the targets table artifact is absent from storage.
	ErrReferenceNotFound = errors.New("reference table not found")
)

// IsConfigurationError reports whether err must abort the run immediately.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingJoinKey) ||
		errors.Is(err, ErrDuplicateReferenceKey) ||
		errors.Is(err, ErrReferenceNotFound) ||
		errors.Is(err, ErrUnknownFormat)
}
