// Package validate turns untrusted request bodies into typed issue inputs.
// Every function here is pure: no store or network access.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joescharf/issues/internal/models"
)

// MaxTitleLength is the longest title accepted, counted in characters.
const MaxTitleLength = 255

// MaxUserIDLength bounds assignedToUserId.
const MaxUserIDLength = 255

// Field names as they appear on the wire.
const (
	FieldBody        = "body"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldAssignee    = "assignedToUserId"
)

// CreateIssueInput is a validated create request.
type CreateIssueInput struct {
	Title       string
	Description string
}

// PatchIssueInput is a validated edit/assign request. Nil fields were absent.
// AssigneeSet is true when assignedToUserId was present, in which case a nil
// AssignedToUserID means unassign.
type PatchIssueInput struct {
	Title            *string
	Description      *string
	Status           *models.IssueStatus
	AssigneeSet      bool
	AssignedToUserID *string
}

// Empty reports whether the patch names no known field.
func (p PatchIssueInput) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && !p.AssigneeSet
}

// CreateIssue validates raw against the create schema.
func CreateIssue(raw []byte) (CreateIssueInput, error) {
	errs := &Errors{}
	obj, ok := decodeObject(raw, errs)
	if !ok {
		return CreateIssueInput{}, errs
	}

	var in CreateIssueInput
	if v, ok := requiredString(obj, FieldTitle, errs); ok {
		checkTitle(v, errs)
		in.Title = v
	}
	if v, ok := requiredString(obj, FieldDescription, errs); ok {
		in.Description = v
	}

	if err := errs.orNil(); err != nil {
		return CreateIssueInput{}, err
	}
	return in, nil
}

// PatchIssue validates raw against the patch schema. Only present keys are
// checked; unknown keys are ignored.
func PatchIssue(raw []byte) (PatchIssueInput, error) {
	errs := &Errors{}
	obj, ok := decodeObject(raw, errs)
	if !ok {
		return PatchIssueInput{}, errs
	}

	var in PatchIssueInput
	if v, present, ok := optionalString(obj, FieldTitle, errs); present && ok {
		if v == "" {
			errs.Add(FieldTitle, "must not be empty")
		} else {
			checkTitle(v, errs)
		}
		in.Title = &v
	}
	if v, present, ok := optionalString(obj, FieldDescription, errs); present && ok {
		if v == "" {
			errs.Add(FieldDescription, "must not be empty")
		}
		in.Description = &v
	}
	if v, present, ok := optionalString(obj, FieldStatus, errs); present && ok {
		st := models.IssueStatus(v)
		if !st.IsValid() {
			errs.Add(FieldStatus, fmt.Sprintf("must be one of %s", statusList()))
		}
		in.Status = &st
	}
	if rawAssignee, present := obj[FieldAssignee]; present {
		in.AssigneeSet = true
		in.AssignedToUserID = assignee(rawAssignee, errs)
	}

	if err := errs.orNil(); err != nil {
		return PatchIssueInput{}, err
	}
	return in, nil
}

func decodeObject(raw []byte, errs *Errors) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		errs.Add(FieldBody, "must be a JSON object")
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		errs.Add(FieldBody, "invalid JSON")
		return nil, false
	}
	return obj, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// requiredString reports a field error when the key is missing, null, not a
// string, or empty.
func requiredString(obj map[string]json.RawMessage, field string, errs *Errors) (string, bool) {
	raw, present := obj[field]
	if !present || isNull(raw) {
		errs.Add(field, "is required")
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		errs.Add(field, "must be a string")
		return "", false
	}
	if s == "" {
		errs.Add(field, "is required")
		return "", false
	}
	return s, true
}

// optionalString decodes field when present. Null is rejected; the assignee
// is the only nullable field and is decoded by assignee.
func optionalString(obj map[string]json.RawMessage, field string, errs *Errors) (value string, present, ok bool) {
	raw, present := obj[field]
	if !present {
		return "", false, false
	}
	if isNull(raw) {
		errs.Add(field, "must not be null")
		return "", true, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		errs.Add(field, "must be a string")
		return "", true, false
	}
	return value, true, true
}

// assignee decodes assignedToUserId. Null and "" both mean unassigned.
func assignee(raw json.RawMessage, errs *Errors) *string {
	if isNull(raw) {
		return nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		errs.Add(FieldAssignee, "must be a string or null")
		return nil
	}
	if id == "" {
		return nil
	}
	if utf8.RuneCountInString(id) > MaxUserIDLength {
		errs.Add(FieldAssignee, fmt.Sprintf("must be at most %d characters", MaxUserIDLength))
	}
	return &id
}

func checkTitle(title string, errs *Errors) {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		errs.Add(FieldTitle, fmt.Sprintf("must be at most %d characters", MaxTitleLength))
	}
}

func statusList() string {
	names := make([]string, len(models.IssueStatuses))
	for i, s := range models.IssueStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
