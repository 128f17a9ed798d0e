package models

// Session is the authenticated identity resolved for a single request.
// It is derived from a token and never stored.
type Session struct {
	UserID string
	Email  string
	Name   string
}
