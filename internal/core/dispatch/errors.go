package dispatch

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or missing input caught before any store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundKind distinguishes what could not be found.
type NotFoundKind string

const (
	NotFoundManifest NotFoundKind = "manifest"
	NotFoundBranch   NotFoundKind = "branch"
)

// NotFoundError reports a manifest id or branch slug that does not exist in scope.
type NotFoundError struct {
	Kind       NotFoundKind
	ManifestID string
	BranchSlug string
}

func (e *NotFoundError) Error() string {
	if e.Kind == NotFoundBranch {
		return fmt.Sprintf("branch %s not found in manifest %s", e.BranchSlug, e.ManifestID)
	}
	return fmt.Sprintf("manifest %s not found", e.ManifestID)
}

// InvalidTransitionError reports a status change that is not permitted from the current state.
type InvalidTransitionError struct {
	BranchSlug string
	From       Status
	To         Status
	Reason     string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("branch %s cannot move from %s to %s", e.BranchSlug, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// SkippedBranch records a late-item target that was not mutated.
type SkippedBranch struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// PartialFailureError reports a late-item addition where every targeted branch was skipped.
type PartialFailureError struct {
	ManifestID string
	ItemName   string
	Skipped    []SkippedBranch
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		parts[i] = fmt.Sprintf("%s (%s)", s.Name, s.Reason)
	}
	return fmt.Sprintf("could not add %q to any branch of manifest %s: %s",
		e.ItemName, e.ManifestID, strings.Join(parts, "; "))
}

// ConflictError reports that concurrent writers kept changing the same sub-dispatch.
type ConflictError struct {
	ManifestID string
	BranchSlug string
	Attempts   int
}

func (e *ConflictError) Error() string {
	if e.BranchSlug == "" {
		return fmt.Sprintf("manifest %s was modified concurrently (%d attempts); re-read and retry",
			e.ManifestID, e.Attempts)
	}
	return fmt.Sprintf("branch %s of manifest %s was modified concurrently (%d attempts); re-read and retry",
		e.BranchSlug, e.ManifestID, e.Attempts)
}
