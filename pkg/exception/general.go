package exception

import "errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInResponseError = errors.New("there is an error in response error field")
	ErrInvalidConfig   = errors.New("invalid config")
)
