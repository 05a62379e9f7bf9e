package repository

import "github.com/pkg/errors"

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")

	// Outcomes of the conditional seat write, disambiguated after the
	// store rejects it.
	ErrAlreadyRegistered = errors.New("team already registered")
	ErrEventFull         = errors.New("event is full")
)
