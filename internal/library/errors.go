package library

import "errors"

var (
	// ErrOutOfRange reports an index with no record or no ownership entry.
	ErrOutOfRange = errors.New("book index out of range")

	// ErrNotOwner reports a caller that is not the record's registered owner.
	ErrNotOwner = errors.New("caller is not the owner of this book")

	// ErrMalformedRecord reports a stored record with fewer parts than a
	// requested field replacement needs. The record is left unchanged.
	ErrMalformedRecord = errors.New("book record is malformed")
)

// Status strings returned to the host, one per update outcome.
//
// StatusUpdated, StatusOutOfRange and StatusNotOwner are the three reference
// outcomes. StatusMalformedRecord is not one of them: it stands in for the
// abort a record with too few parts would otherwise cause, and like that
// abort it leaves the store unchanged.
const (
	StatusUpdated         = "Success: Book updated"
	StatusOutOfRange      = "Error: Book index out of range"
	StatusNotOwner        = "Error: You are not the owner of this book"
	StatusMalformedRecord = "Error: Book record is malformed"
)

// Status maps an UpdateBook result to its status string.
// ErrMalformedRecord maps to StatusMalformedRecord, the one status outside
// the reference set. Unknown errors yield their own message.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusUpdated
	case errors.Is(err, ErrOutOfRange):
		return StatusOutOfRange
	case errors.Is(err, ErrNotOwner):
		return StatusNotOwner
	case errors.Is(err, ErrMalformedRecord):
		return StatusMalformedRecord
	default:
		return "Error: " + err.Error()
	}
}
