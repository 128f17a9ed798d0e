package models

import (
	"strings"
	"time"
)

// IssueStatus represents the state of an issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "OPEN"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusClosed     IssueStatus = "CLOSED"
)

// IssueStatuses lists every valid status in display order.
var IssueStatuses = []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusClosed}

// IsValid reports whether s is one of the known statuses.
func (s IssueStatus) IsValid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusClosed:
		return true
	}
	return false
}

// ParseIssueStatus matches s case-insensitively against the known statuses.
func ParseIssueStatus(s string) (IssueStatus, bool) {
	st := IssueStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// Issue is a trackable unit of work.
type Issue struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Status           IssueStatus `json:"status"`
	AssignedToUserID *string     `json:"assignedToUserId"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}
