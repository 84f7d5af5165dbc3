package app

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// password so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("Invalid credentials")

	ErrUserExists = errors.New("User already exists")

	// ErrReservedEmail rejects registrations inside the guest namespace.
	ErrReservedEmail = errors.New("email is reserved for guest accounts")

	ErrInvalidInput = errors.New("invalid input")

	ErrNoteNotFound  = errors.New("Note not found")
	ErrLabelNotFound = errors.New("Category not found")
	ErrLabelExists   = errors.New("Category already exists")
)
