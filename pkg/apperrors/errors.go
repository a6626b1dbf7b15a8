package apperrors

import "errors"

var (
	ErrUnknownTable       = errors.New("unknown legacy table")
	ErrAccountingMismatch = errors.New("run accounting does not reconcile")
	ErrSchemaNotReady     = errors.New("target schema not ready")
)
