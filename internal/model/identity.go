package model

import "strings"

// Identity is the authenticated user behind a session
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DisplayName returns the full name, the local part of the email or
// "Student", whichever is available first
func (i *Identity) DisplayName() string {
	if n := strings.TrimSpace(i.Name); n != "" {
		return n
	}

	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}

	return "Student"
}
