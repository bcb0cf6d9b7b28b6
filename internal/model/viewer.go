package model

import "strings"

const RoleAdmin = "admin"

// Viewer is the caller of a read. The zero value is an anonymous visitor.
type Viewer struct {
	UserID string
	Role   string
}

func (v Viewer) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(v.Role), RoleAdmin)
}

func (v Viewer) IsAuthenticated() bool {
	return strings.TrimSpace(v.UserID) != ""
}
