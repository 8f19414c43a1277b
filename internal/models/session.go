package models

import "github.com/google/uuid"

// UserSession is the authenticated actor extracted from the session cookie
type UserSession struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	ExpiresAt int64     `json:"expiresAt"`
	IssuedAt  int64     `json:"issuedAt"`
}

// IsMentor reports whether the actor holds the mentor capability
func (s *UserSession) IsMentor() bool {
	return s.Role == RoleMentor
}

// IsAdmin reports whether the actor is an administrator
func (s *UserSession) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// RequestLoginPayload asks for a one-time login token by email
type RequestLoginPayload struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyLoginPayload exchanges a login token for a session cookie
type VerifyLoginPayload struct {
	Token string `json:"token" binding:"required"`
}
