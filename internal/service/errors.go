package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error taxonomy surfaced to callers. Wrapped errors keep the detail; match
// with errors.Is.
var (
	// ErrNotFound: an acquisition or lot referenced by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientInventory: a sale would allocate more than the remaining
	// quantity of the matching lots.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrAllocationMismatch: manual unit costs do not add up to the
	// acquisition total.
	ErrAllocationMismatch = errors.New("allocated cost does not match acquisition total")
	// ErrInvalidInput: an event failed boundary validation.
	ErrInvalidInput = errors.New("invalid input")
)

// notFound converts gorm's record-not-found into ErrNotFound and passes any
// other error through.
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}
