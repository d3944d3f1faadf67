package domain

import "time"

// AnalystRole enumerates operator roles. Supervisors and admins may join any
// ticket room regardless of claimant.
type AnalystRole string

const (
	RoleAnalyst    AnalystRole = "analyst"
	RoleSupervisor AnalystRole = "supervisor"
	RoleAdmin      AnalystRole = "admin"
)

// Elevated reports whether the role bypasses the claimant-match room check.
func (r AnalystRole) Elevated() bool {
	return r == RoleSupervisor || r == RoleAdmin
}

// Analyst models a dashboard operator account.
type Analyst struct {
	ID           string
	Username     string
	PasswordHash string
	FullName     string
	Email        *string
	Role         AnalystRole
	DiscordID    *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
