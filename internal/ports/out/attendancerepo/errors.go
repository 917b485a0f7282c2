package attendancerepo

import "errors"

var (
	// ErrNotFound indicates no attendance record exists for (event, user).
	ErrNotFound = errors.New("attendance not found")

	// ErrEventNotFound is returned by InEventTx when the event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrUserNotFound indicates the record references a user the store does not know.
	ErrUserNotFound = errors.New("attendance user not found")

	// ErrAlreadyExists indicates a record for (event, user) already exists.
	ErrAlreadyExists = errors.New("attendance already exists")

	// ErrCapacityExceeded indicates a confirmed write was rejected because the
	// event has no free seat at write time.
	ErrCapacityExceeded = errors.New("event capacity exceeded")

	// ErrConflict indicates the store could not serialize the unit of work
	// (lock timeout, serialization failure, deadlock). The whole unit may be retried.
	ErrConflict = errors.New("attendance write conflict")
)
