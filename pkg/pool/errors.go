package pool

import "github.com/ajitpratap0/spawnpool/pkg/errors"

// Sentinel errors for inspection with errors.Is. Every error returned by the
// Manager wraps one of these, with the template id attached as a detail.
var (
	// ErrUnknownTemplate is returned when an operation names a template that
	// is not registered. The operation is a no-op.
	ErrUnknownTemplate = errors.Sentinel(errors.ErrorTypeNotFound, "unknown template")

	// ErrInvalidTemplate is returned by Register, Warm and Resize for
	// malformed input. No state is mutated.
	ErrInvalidTemplate = errors.Sentinel(errors.ErrorTypeValidation, "invalid template")

	// ErrPoolExhausted is returned by Queue.Dequeue on an empty queue. The
	// Manager never lets this escape: seeing it means the queue invariant is
	// broken, and the Manager panics with it.
	ErrPoolExhausted = errors.Sentinel(errors.ErrorTypeInternal, "pool exhausted")

	// ErrManagerClosed is returned by every operation after Shutdown.
	ErrManagerClosed = errors.Sentinel(errors.ErrorTypeConflict, "manager is closed")

	// ErrStaleInstance is returned by Release for an instance whose template
	// was cleared (and possibly registered again) since it was spawned.
	ErrStaleInstance = errors.Sentinel(errors.ErrorTypeValidation, "instance is not owned by this pool")
)

func unknownTemplate(op, id string) error {
	return errors.Wrap(ErrUnknownTemplate, errors.ErrorTypeNotFound, op).
		WithDetail("template", id)
}

func invalidTemplate(id, reason string) *errors.Error {
	return errors.Wrap(ErrInvalidTemplate, errors.ErrorTypeValidation, reason).
		WithDetail("template", id)
}
