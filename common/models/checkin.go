package models

import (
	"fmt"
	"strings"
	"time"
)

// RecordType discriminates the rows sharing a check-in partition.
type RecordType string

const (
	RecordCheckIn    RecordType = "CHECKIN"
	RecordAssignment RecordType = "ASSIGNMENT"
	RecordResponse   RecordType = "RESPONSE"
)

type AssignmentStatus string

const (
	StatusPending   AssignmentStatus = "pending"
	StatusCompleted AssignmentStatus = "completed"
	// StatusOverdue is display-only. It is derived from the due date and never stored.
	StatusOverdue AssignmentStatus = "overdue"
)

type Question struct {
	ID          string `dynamodbav:"id" json:"id"`
	TextContent string `dynamodbav:"textContent" json:"textContent"`
}

type CheckIn struct {
	ID          string     `dynamodbav:"id" json:"id"`
	Title       string     `dynamodbav:"title" json:"title"`
	Description string     `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Questions   []Question `dynamodbav:"questions" json:"questions"`
	DueDate     time.Time  `dynamodbav:"dueDate" json:"dueDate"`
	CreatedBy   string     `dynamodbav:"createdBy" json:"createdBy"`
	CreatedAt   time.Time  `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `dynamodbav:"updatedAt" json:"updatedAt"`
}

type Assignment struct {
	UserID      string           `dynamodbav:"userId" json:"userId"`
	Status      AssignmentStatus `dynamodbav:"status" json:"status"`
	AssignedAt  time.Time        `dynamodbav:"assignedAt" json:"assignedAt"`
	AssignedBy  string           `dynamodbav:"assignedBy" json:"assignedBy"`
	CompletedAt *time.Time       `dynamodbav:"completedAt,omitempty" json:"completedAt,omitempty"`
}

type Answer struct {
	QuestionID string `dynamodbav:"questionId" json:"questionId"`
	Response   string `dynamodbav:"response" json:"response"`
}

type Response struct {
	UserID      string    `dynamodbav:"userId" json:"userId"`
	Answers     []Answer  `dynamodbav:"answers" json:"answers"`
	SubmittedAt time.Time `dynamodbav:"submittedAt" json:"submittedAt"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// CreateCheckInInput is what a manager supplies; ids and timestamps are generated.
type CreateCheckInInput struct {
	Title           string
	Description     string
	Questions       []string
	DueDate         time.Time
	CreatedBy       string
	AssignedUserIDs []string
}

// AssignmentView is the assignment subset surfaced next to its check-in.
type AssignmentView struct {
	Status        AssignmentStatus `json:"status"`
	DisplayStatus AssignmentStatus `json:"displayStatus"`
	AssignedAt    time.Time        `json:"assignedAt"`
	AssignedBy    string           `json:"assignedBy"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
	IsOverdue     bool             `json:"isOverdue"`
}

type AssignedCheckIn struct {
	CheckIn    *CheckIn       `json:"checkIn"`
	Assignment AssignmentView `json:"assignment"`
}

type AssignmentDetail struct {
	UserID        string           `json:"userId"`
	UserName      string           `json:"userName"`
	UserEmail     string           `json:"userEmail"`
	Status        AssignmentStatus `json:"status"`
	DisplayStatus AssignmentStatus `json:"displayStatus"`
	AssignedAt    time.Time        `json:"assignedAt"`
	AssignedBy    string           `json:"assignedBy"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
	IsOverdue     bool             `json:"isOverdue"`
	Responses     []Answer         `json:"responses,omitempty"`
}

// StatusCounts tallies persisted statuses. Unrecognized holds rows that are
// neither pending nor completed so the totals always add up.
type StatusCounts struct {
	Pending      int `json:"pending"`
	Completed    int `json:"completed"`
	Unrecognized int `json:"unrecognized,omitempty"`
}

type CheckInDetails struct {
	CheckIn      *CheckIn            `json:"checkIn"`
	Assignments  []*AssignmentDetail `json:"assignments"`
	StatusCounts StatusCounts        `json:"statusCounts"`
}

// IsOverdue reports whether a pending assignment is past the due date at now.
func IsOverdue(status AssignmentStatus, dueDate, now time.Time) bool {
	return status == StatusPending && now.After(dueDate)
}

// DisplayStatus folds the derived overdue state into the persisted status.
func DisplayStatus(status AssignmentStatus, dueDate, now time.Time) AssignmentStatus {
	if IsOverdue(status, dueDate, now) {
		return StatusOverdue
	}
	return status
}

// Key handlers
const (
	checkInPKPrefix    = "checkin#"
	assignmentSKPrefix = "assignment#"
	responseSKPrefix   = "response#"
)

func CheckInPK(checkInID string) string {
	return checkInPKPrefix + checkInID
}

func MetaSK() string {
	return "meta"
}

func AssignmentSK(userID string) string {
	return assignmentSKPrefix + userID
}

func ResponseSK(userID string) string {
	return responseSKPrefix + userID
}

func AssignmentSKPrefix() string {
	return assignmentSKPrefix
}

func ResponseSKPrefix() string {
	return responseSKPrefix
}

func ExtractCheckInID(pk string) (string, error) {
	if !strings.HasPrefix(pk, checkInPKPrefix) || len(pk) == len(checkInPKPrefix) {
		return "", fmt.Errorf("invalid check-in PK format: %s", pk)
	}
	return pk[len(checkInPKPrefix):], nil
}
