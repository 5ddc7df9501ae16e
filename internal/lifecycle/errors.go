package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ecanizalez/orgreq/internal/models"
)

// ErrNotFound covers unknown invitation ids and tokens, and tokens
// whose invitation can no longer be reached (terminal status, past
// expiry). Public callers get one indistinguishable answer for all of
// these.
var ErrNotFound = errors.New("invitation not found")

// ValidationError means the payload itself is wrong. Caller-correctable
// and guaranteed to leave no state behind.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError means the requested action is not legal from
// the invitation's current status. Also returned to the loser of a
// concurrent transition race.
type InvalidTransitionError struct {
	From   models.StatusName
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an invitation in status %q", e.Action, e.From)
}

// ProvisioningError wraps an unexpected failure while creating the
// organization or administrator during approval. The whole transition
// rolls back.
type ProvisioningError struct {
	Reason string
	Err    error
}

func (e *ProvisioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provisioning failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("provisioning failed: %s", e.Reason)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
