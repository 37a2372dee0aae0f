package apperrors

import "errors"

var (
	ErrEmptyRequest          = errors.New("empty request")
	ErrUnknownTable          = errors.New("unknown table")
	ErrUnknownTool           = errors.New("unknown tool")
	ErrInvalidArguments      = errors.New("invalid arguments")
	ErrStoreUnavailable      = errors.New("data store unavailable")
	ErrCompletionUnavailable = errors.New("completion service unavailable")
	ErrUnparseableIntent     = errors.New("unparseable intent")
)
