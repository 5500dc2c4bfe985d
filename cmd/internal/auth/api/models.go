package authapi

import "time"

type loginRequest struct {
	ID       int64  `json:"id"`
	Password string `json:"password"`
}

// tokenResponse is the success body of login and refresh.
type tokenResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type meResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	State    string `json:"state"`
}

type sessionResponse struct {
	ID                  string     `json:"id"`
	UserID              int64      `json:"userId"`
	TokenHash           string     `json:"tokenHash"`
	ExpiresAt           time.Time  `json:"expiresAt"`
	CreatedByIP         *string    `json:"createdByIp"`
	RevokedAt           *time.Time `json:"revokedAt"`
	RevokedByIP         *string    `json:"revokedByIp"`
	ReplacedByTokenHash *string    `json:"replacedByTokenHash"`
	IsActive            bool       `json:"isActive"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type sessionListResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Result  []sessionResponse `json:"result"`
}

type purgeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}
