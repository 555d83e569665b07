package dtable

import "errors"

// Sentinel errors returned by this package. Callers should use errors.Is,
// never string matching; implementations may wrap these with additional
// context.
var (
	// ErrInvalidInput marks a precondition violation on the arguments to an
	// operation. Open returns it for MaxRecords == 0; the record operations
	// report their own precondition violations (zero size, empty bytes,
	// out-of-range index) as Invalid or false instead.
	ErrInvalidInput = errors.New("dtable: invalid input")

	// ErrWrongState names an operation attempted against a descriptor whose
	// current state does not permit it (e.g. committing a Stored slot). The
	// record operations report that case as Invalid or false and do not
	// return ErrWrongState.
	ErrWrongState = errors.New("dtable: wrong descriptor state")

	// ErrFull names the case where the descriptor array has no free slot
	// and the high-water mark has reached MaxRecords. AllocRecord and
	// Storage.CreateRecord report that case as Invalid with a nil error and
	// do not return ErrFull.
	ErrFull = errors.New("dtable: table full")

	// ErrBusy is returned when a writer session cannot be acquired because
	// another writer session (in this process) already holds the lock.
	ErrBusy = errors.New("dtable: busy")

	// ErrClosed is returned by AllocRecord and Clear when called after
	// Close. WriteRecordData, CommitRecord, DeleteRecord, GetRecord and
	// GetRecordWithValidation return false or nil instead; the other Table
	// methods do not check for Close.
	ErrClosed = errors.New("dtable: closed")

	// ErrIncompatible is returned by Open when an existing file's version,
	// header size, or descriptor size does not match this build's layout.
	ErrIncompatible = errors.New("dtable: incompatible file format")

	// ErrCorrupt is returned by Open when recovery finds state it cannot
	// safely reason about (move-pair or data-list pointers out of range).
	ErrCorrupt = errors.New("dtable: corrupt file")
)
