package models

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")

	// ErrOracleUnavailable is transient: the cascade retries the stage once and
	// then escalates or degrades. It is never fatal to a batch.
	ErrOracleUnavailable = errors.New("scoring oracle unavailable")

	// ErrPolicyMisconfigured is fatal at startup, before any item is processed.
	ErrPolicyMisconfigured = errors.New("policy misconfigured")

	// ErrCalibrationRefused means the gold set was too small to fit a model.
	// The previous model (or static policy) stays active.
	ErrCalibrationRefused = errors.New("calibration refused")

	// ErrTriageConflict is returned when resolving an item that is not queued.
	ErrTriageConflict = errors.New("triage record not found for item")
)
