package dto

import "time"

// LoginRequest carries analyst credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the issued token.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Analyst   AnalystResponse `json:"analyst"`
}

// AnalystResponse is the outward account shape; never includes the hash.
type AnalystResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     *string   `json:"email,omitempty"`
	Role      string    `json:"role"`
	DiscordID *string   `json:"discord_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateAnalystRequest registers an account.
type CreateAnalystRequest struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	FullName  string  `json:"full_name"`
	Email     *string `json:"email"`
	Role      string  `json:"role"`
	DiscordID *string `json:"discord_id"`
}

// UpdateAnalystRequest mutates an account; nil fields are unchanged.
type UpdateAnalystRequest struct {
	Password  *string `json:"password"`
	FullName  *string `json:"full_name"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	DiscordID *string `json:"discord_id"`
	Active    *bool   `json:"active"`
}
