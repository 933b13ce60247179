package dynamo

import "errors"

// Domain errors for model construction and evaluation.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrUnknownIntegrator indicates an unrecognized discretization method.
	ErrUnknownIntegrator = errors.New("dynamo: unknown integration method")
)
