package domain

import (
	"errors"
	"fmt"
)

// Error kinds usable with errors.Is against any of the typed errors below.
var (
	ErrKindNotFound      = errors.New("not found")
	ErrKindInvalidGender = errors.New("invalid gender")
	ErrKindConflict      = errors.New("conflict")
	ErrKindValidation    = errors.New("validation failed")
)

// ErrNotFound is returned when a referenced animal or event is absent.
type ErrNotFound struct {
	Entity EntityType
	ID     int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is matches ErrKindNotFound.
func (e ErrNotFound) Is(target error) bool { return target == ErrKindNotFound }

// ErrInvalidGender is returned when a pairing does not combine one male and one female.
type ErrInvalidGender struct {
	MaleID       int64
	FemaleID     int64
	MaleGender   Gender
	FemaleGender Gender
}

func (e ErrInvalidGender) Error() string {
	return fmt.Sprintf("invalid pairing: animal %d is %s and animal %d is %s", e.MaleID, e.MaleGender, e.FemaleID, e.FemaleGender)
}

// Is matches ErrKindInvalidGender.
func (e ErrInvalidGender) Is(target error) bool { return target == ErrKindInvalidGender }

// ErrConflict is returned when an operation would violate a uniqueness or dependency invariant.
type ErrConflict struct {
	Entity EntityType
	ID     int64
	Reason string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Reason)
}

// Is matches ErrKindConflict.
func (e ErrConflict) Is(target error) bool { return target == ErrKindConflict }

// ErrValidation reports malformed input.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrKindValidation.
func (e ErrValidation) Is(target error) bool { return target == ErrKindValidation }
