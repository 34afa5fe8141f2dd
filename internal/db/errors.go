package db

import "errors"

// Domain-level database error sentinels.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyRegistered  = errors.New("email is already registered")
	ErrSubjectAlreadyUsed = errors.New("identity is already bound to another registration")

	// Item errors
	ErrItemNotFound = errors.New("item not found")

	// Annotation errors
	ErrOwnItem = errors.New("cannot annotate an item on your own list")
)
