package models

import (
	dErrors "unify/pkg/domain-errors"
)

var (
	errSelfMerge    = dErrors.New(dErrors.CodeInvariantViolation, "entity cannot be merged into itself")
	errTypeMismatch = dErrors.New(dErrors.CodeInvariantViolation, "entities of different types cannot be merged")
)
