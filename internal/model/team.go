package model

import "time"

const (
	// A team is the leader plus 2–3 registered members, so total
	// head-count is 3–4.
	MinTeamMembers = 2
	MaxTeamMembers = 3
)

type Team struct {
	ID        string        `json:"id"`
	Name      string        `json:"team_name" validate:"required"`
	LeaderID  string        `json:"team_leader"`
	Members   []*TeamMember `json:"members" validate:"required,dive"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
}

type TeamMember struct {
	FullName   string `json:"full_name" validate:"required"`
	USN        string `json:"usn" validate:"required"`
	Semester   int    `json:"current_semester" validate:"required,min=1"`
	Department string `json:"department" validate:"required"`
}
