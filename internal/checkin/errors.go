package checkin

import "errors"

var (
	// ErrSessionNotFound indicates the session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession indicates a session with the same id already exists.
	ErrDuplicateSession = errors.New("session already exists")
	// ErrInvalidSession indicates invalid session input.
	ErrInvalidSession = errors.New("invalid session input")
	// ErrSessionNotActive indicates the session is closed or cancelled.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrSessionFull indicates the session reached its player limit.
	ErrSessionFull = errors.New("session is full")
	// ErrAlreadyCheckedIn indicates the player is currently checked in.
	ErrAlreadyCheckedIn = errors.New("player already checked in")
	// ErrPlayerNotCheckedIn indicates the player has no check-in to close.
	ErrPlayerNotCheckedIn = errors.New("player has not checked in")
	// ErrAlreadyCheckedOut indicates the player already checked out.
	ErrAlreadyCheckedOut = errors.New("player already checked out")
)

// PersistError wraps a store failure raised while saving registry state.
// The in-memory change it belongs to has been rolled back.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return "persist " + e.Op + ": " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// ErrorKind groups registry errors by how callers should react
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindNotFound         ErrorKind = "not_found"
	KindInvalidState     ErrorKind = "invalid_state"
	KindCapacityExceeded ErrorKind = "capacity_exceeded"
	KindPersistence      ErrorKind = "persistence"
	KindUnknown          ErrorKind = "unknown"
)

// Kind classifies err into the registry error taxonomy
func Kind(err error) ErrorKind {
	var persistErr *PersistError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &persistErr):
		return KindPersistence
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrPlayerNotCheckedIn):
		return KindNotFound
	case errors.Is(err, ErrSessionFull):
		return KindCapacityExceeded
	case errors.Is(err, ErrSessionNotActive),
		errors.Is(err, ErrAlreadyCheckedIn),
		errors.Is(err, ErrAlreadyCheckedOut),
		errors.Is(err, ErrDuplicateSession),
		errors.Is(err, ErrInvalidSession):
		return KindInvalidState
	default:
		return KindUnknown
	}
}
