package auth

import "time"

// Credentials are exchanged for a bearer token at the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Branch is the sucursal a user belongs to.
type Branch struct {
	ID     int64  `json:"id"`
	Name   string `json:"nombre"`
	Active bool   `json:"estado,omitempty"`
}

// Role is the role the backend reports for a user.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Identity is the authenticated user's profile snapshot as returned by /auth/me.
// It is replaced wholesale on every successful session check and never patched.
type Identity struct {
	ID          int64        `json:"id"`
	Name        string       `json:"nombre"`
	Email       string       `json:"email"`
	BranchID    *int64       `json:"sucursal_id,omitempty"`
	RoleID      *int64       `json:"role_id,omitempty"`
	Active      bool         `json:"estado"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
	Branch      *Branch      `json:"sucursal,omitempty"`
	Role        *Role        `json:"roles,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Clone returns a deep copy so snapshots handed to readers cannot alias state.
func (i Identity) Clone() Identity {
	out := i
	if i.BranchID != nil {
		v := *i.BranchID
		out.BranchID = &v
	}
	if i.RoleID != nil {
		v := *i.RoleID
		out.RoleID = &v
	}
	if i.CreatedAt != nil {
		v := *i.CreatedAt
		out.CreatedAt = &v
	}
	if i.UpdatedAt != nil {
		v := *i.UpdatedAt
		out.UpdatedAt = &v
	}
	if i.Branch != nil {
		v := *i.Branch
		out.Branch = &v
	}
	if i.Role != nil {
		v := *i.Role
		out.Role = &v
	}
	if i.Permissions != nil {
		out.Permissions = append([]Permission(nil), i.Permissions...)
	}
	return out
}

// Permission is a named capability granted through the user's role.
type Permission struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TokenResponse is the payload of /auth/login and /auth/refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// MeResponse is the payload of /auth/me.
type MeResponse struct {
	Data        *Identity    `json:"data"`
	Permissions []Permission `json:"permissions"`
}
