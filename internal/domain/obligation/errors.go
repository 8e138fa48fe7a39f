package obligation

import (
	"fmt"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/google/uuid"
)

// Engine error kinds. Returned errors carry a descriptive message and
// context but match these sentinels through errors.Is.
var (
	ErrInvalidTerm       = shared.NewDomainError("INVALID_TERM", "Commercial term is invalid")
	ErrInvalidState      = shared.ErrInvalidState
	ErrMissingParameter  = shared.NewDomainError("MISSING_PARAMETER", "Required strategy parameter is missing")
	ErrNoCandidates      = shared.NewDomainError("NO_CANDIDATES", "No eligible sibling obligations")
	ErrTargetNotFound    = shared.NewDomainError("TARGET_NOT_FOUND", "Target obligation not among candidates")
	ErrInvalidStrategy   = shared.NewDomainError("INVALID_STRATEGY", "Strategy does not apply to this outcome")
	ErrIllegalTransition = shared.NewDomainError("ILLEGAL_TRANSITION", "Status transition is not allowed")
)

func newError(kind *shared.DomainError, format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(kind.Code, fmt.Sprintf(format, args...))
}

func withObligation(err *shared.DomainError, id uuid.UUID) *shared.DomainError {
	return err.With("obligation_id", id.String())
}
