package evaluation

import "errors"

var (
	ErrNotFound         = errors.New("evaluation resource not found")
	ErrValidation       = errors.New("evaluation input is invalid")
	ErrConflict         = errors.New("evaluation record was modified concurrently")
	ErrAlreadySubmitted = errors.New("evaluation record is already submitted")
	ErrForbidden        = errors.New("evaluator is not allowed to act on this record")
)
