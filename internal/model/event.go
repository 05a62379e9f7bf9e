package model

import "time"

type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Category    []string   `json:"category" validate:"required,min=1"`
	Date        time.Time  `json:"date" validate:"required"`
	StartTime   string     `json:"start_time" validate:"required"`
	EndTime     string     `json:"end_time" validate:"required"`
	Location    string     `json:"location" validate:"required"`
	MaxSeats    int        `json:"max_seats" validate:"required,min=1"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`

	// RegisteredTeams is the membership set: a team id in the list holds
	// exactly one seat. Mutated only through the registration engine.
	RegisteredTeams []string `json:"registered_teams"`

	// SeatsAvailable is derived from MaxSeats and RegisteredTeams, never
	// persisted.
	SeatsAvailable int `json:"seats_available"`
}
