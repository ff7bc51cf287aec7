package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Domain errors
var (
	ErrInvalidWorkflowDefinition = goerr.New("invalid workflow definition")
	ErrAuditImmutable            = goerr.New("audit log entries are immutable")
)

// Context keys for error values
const (
	InvalidFieldKey = "field"
	StateKey        = "state"
	FromStateKey    = "from"
	ToStateKey      = "to"
)

// InvalidField returns the offending field recorded on a workflow validation error,
// or an empty string if err carries none.
func InvalidField(err error) string {
	var ge *goerr.Error
	if !errors.As(err, &ge) {
		return ""
	}
	if v, ok := ge.Values()[InvalidFieldKey].(string); ok {
		return v
	}
	return ""
}
