package config

import "errors"

// ErrInvalidConfig is wrapped by every flag validation failure
var ErrInvalidConfig = errors.New("invalid configuration")
