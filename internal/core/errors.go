package core

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/gradebook/internal/tabular"
)

// ParseError is a file that could not be read or holds no data.
type ParseError = tabular.ParseError

var (
	// ErrUnrecognizedBatch is returned when importing a batch whose kind was
	// not recognized and no kind was chosen by the user.
	ErrUnrecognizedBatch = errors.New("unrecognized batch: choose the record kind manually")

	// ErrNoValidRows means every row failed validation or resolution. The
	// outcome returned with it still lists the row errors.
	ErrNoValidRows = errors.New("no valid rows to import")

	// ErrNotFound is returned by stores for a missing or foreign-owned record.
	ErrNotFound = errors.New("record not found")

	// ErrStageNotFound means the staged batch expired or never existed.
	ErrStageNotFound = errors.New("staged batch not found")

	// ErrRunNotFound means the import run expired or never existed.
	ErrRunNotFound = errors.New("import run not found")

	// ErrInvalidOwner means the request did not carry a valid owner UUID.
	ErrInvalidOwner = errors.New("invalid owner id")

	// ErrMissingAPIKey and ErrInvalidAPIKey reject /api requests when API
	// keys are required.
	ErrMissingAPIKey = errors.New("missing api key")
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// PreconditionError fails a whole run because a reference table the batch
// depends on is empty for the owner.
type PreconditionError struct {
	Entity string
	Msg    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Msg)
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
