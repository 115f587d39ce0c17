// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/bureau-release/lib/build"
	"github.com/bureau-foundation/bureau-release/lib/packager"
	"github.com/bureau-foundation/bureau-release/lib/publish"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
	"github.com/bureau-foundation/bureau-release/lib/releaserecord"
)

// TargetFailure is one target's first failed stage.
type TargetFailure struct {
	Target string
	Stage  string
	Err    error
}

func (failure TargetFailure) String() string {
	return fmt.Sprintf("%s: %s [%s]: %v", failure.Target, failure.Stage, ErrorKind(failure.Err), failure.Err)
}

// BarrierError is the publish barrier's refusal: at least one target
// did not upload its archive, so the versioned record stays a draft.
type BarrierError struct {
	Tag      string
	Targets  int
	Failures []TargetFailure
}

func (err *BarrierError) Error() string {
	return fmt.Sprintf("not publishing %s: %d of %d targets failed: %s",
		err.Tag, len(err.Failures), err.Targets, joinFailures(err.Failures))
}

func (err *BarrierError) Unwrap() []error { return failureErrors(err.Failures) }

// TargetsError reports target failures in a run without a barrier. The
// nightly record stays live with the assets that did upload.
type TargetsError struct {
	Tag      string
	Targets  int
	Failures []TargetFailure
}

func (err *TargetsError) Error() string {
	return fmt.Sprintf("%s: %d of %d targets failed: %s",
		err.Tag, len(err.Failures), err.Targets, joinFailures(err.Failures))
}

func (err *TargetsError) Unwrap() []error { return failureErrors(err.Failures) }

func joinFailures(failures []TargetFailure) string {
	parts := make([]string, len(failures))
	for index, failure := range failures {
		parts[index] = failure.String()
	}
	return strings.Join(parts, "; ")
}

func failureErrors(failures []TargetFailure) []error {
	errs := make([]error, len(failures))
	for index, failure := range failures {
		errs[index] = failure.Err
	}
	return errs
}

// ErrorKind names the error's class for summaries and commit statuses.
func ErrorKind(err error) string {
	var (
		resolutionError *releaseinfo.ResolutionError
		buildError      *build.Error
		integrityError  *packager.IntegrityError
		conflictError   *releaserecord.ConflictError
		uploadError     *publish.UploadError
		rotationWarning *releaserecord.RotationWarning
		barrierError    *BarrierError
		targetsError    *TargetsError
		cycleError      *CycleError
	)
	switch {
	case err == nil:
		return ""
	// The aggregates wrap target errors, so they go first.
	case errors.As(err, &barrierError):
		return "BarrierError"
	case errors.As(err, &targetsError):
		return "TargetsError"
	case errors.As(err, &resolutionError):
		return "ResolutionError"
	case errors.As(err, &buildError):
		return "BuildError"
	case errors.As(err, &integrityError):
		return "IntegrityError"
	case errors.As(err, &conflictError):
		return "ReleaseConflictError"
	case errors.As(err, &uploadError):
		return "UploadError"
	case errors.As(err, &rotationWarning):
		return "RotationWarning"
	case errors.As(err, &cycleError), errors.Is(err, ErrInvalidGraph):
		return "GraphError"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	default:
		return "Error"
	}
}
