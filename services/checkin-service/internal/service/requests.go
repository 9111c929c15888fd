package service

import "github.com/Sakethtadimeti/checkin-app/common/models"

// CreateCheckInRequest is the validated body of POST /checkins. The
// creator always comes from the caller's identity.
type CreateCheckInRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Questions       []string `json:"questions"`
	DueDate         string   `json:"dueDate"`
	AssignedUserIDs []string `json:"assignedUserIds"`
}

type SubmitResponseRequest struct {
	Answers []models.Answer `json:"answers"`
}
