package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Sakethtadimeti/checkin-app/common/auth"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

var (
	manager = auth.Identity{UserID: "m-1", Email: "sarah@example.com", Role: models.RoleManager}
	member  = auth.Identity{UserID: "u-1", Email: "alice@example.com", Role: models.RoleMember}
	other   = auth.Identity{UserID: "u-9", Email: "eve@example.com", Role: models.RoleMember}
)

type mockCheckInRepo struct {
	created     models.CreateCheckInInput
	details     *models.CheckInDetails
	detailReads int
	submitted   []models.Answer
	err         error
}

func (m *mockCheckInRepo) CreateCheckIn(ctx context.Context, input models.CreateCheckInInput) (*models.CheckIn, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = input
	return &models.CheckIn{ID: "c-1", Title: input.Title, CreatedBy: input.CreatedBy, DueDate: input.DueDate}, nil
}

func (m *mockCheckInRepo) GetCheckIn(ctx context.Context, checkInID string) (*models.CheckIn, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.details == nil {
		return nil, errors.New("no check-in configured")
	}
	return m.details.CheckIn, nil
}

func (m *mockCheckInRepo) IsAssigned(ctx context.Context, checkInID, userID string) (bool, error) {
	for _, a := range m.details.Assignments {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCheckInRepo) GetCheckInsByManager(ctx context.Context, creatorID string) ([]*models.CheckIn, error) {
	return []*models.CheckIn{{ID: "c-1", CreatedBy: creatorID}}, m.err
}

func (m *mockCheckInRepo) GetAssignedCheckInsForUser(ctx context.Context, userID string) ([]*models.AssignedCheckIn, error) {
	return []*models.AssignedCheckIn{}, m.err
}

func (m *mockCheckInRepo) GetCheckInDetails(ctx context.Context, checkInID string) (*models.CheckInDetails, error) {
	m.detailReads++
	if m.err != nil {
		return nil, m.err
	}
	return m.details, nil
}

func (m *mockCheckInRepo) SubmitResponse(ctx context.Context, checkInID, userID string, answers []models.Answer) (*models.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = answers
	return &models.Response{UserID: userID, Answers: answers}, nil
}

func (m *mockCheckInRepo) GetTransactionForResponse(checkInID, userID string, answers []models.Answer, now time.Time) (types.Update, error) {
	return types.Update{}, nil
}

func (m *mockCheckInRepo) GetTransactionForCompletion(checkInID, userID string, now time.Time) (types.Update, error) {
	return types.Update{}, nil
}

type mockPublisher struct {
	created   []string
	submitted []string
	err       error
}

func (p *mockPublisher) PublishCheckInCreated(ctx context.Context, checkIn *models.CheckIn, assignedUserIDs []string) error {
	p.created = append(p.created, checkIn.ID)
	return p.err
}

func (p *mockPublisher) PublishResponseSubmitted(ctx context.Context, checkInID, userID string, answerCount int) error {
	p.submitted = append(p.submitted, checkInID+"/"+userID)
	return p.err
}

func validRequest() CreateCheckInRequest {
	return CreateCheckInRequest{
		Title:           "  Weekly Sync ",
		Questions:       []string{"What shipped?"},
		DueDate:         "2025-03-07T17:00:00Z",
		AssignedUserIDs: []string{member.UserID},
	}
}

func TestCreateCheckInUsesIdentity(t *testing.T) {
	repo := &mockCheckInRepo{}
	pub := &mockPublisher{}
	svc := NewCheckInService(repo, pub, logger.NewNop())

	checkIn, err := svc.CreateCheckIn(context.Background(), manager, validRequest())
	if err != nil {
		t.Fatalf("CreateCheckIn: %v", err)
	}
	if repo.created.CreatedBy != manager.UserID || repo.created.Title != "Weekly Sync" {
		t.Fatalf("repository input = %+v", repo.created)
	}
	if !repo.created.DueDate.Equal(time.Date(2025, 3, 7, 17, 0, 0, 0, time.UTC)) {
		t.Fatalf("dueDate = %v", repo.created.DueDate)
	}
	if len(pub.created) != 1 || pub.created[0] != checkIn.ID {
		t.Fatalf("published = %v", pub.created)
	}
}

func TestCreateCheckInValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*CreateCheckInRequest)
		field string
	}{
		{"bad due date", func(r *CreateCheckInRequest) { r.DueDate = "next friday" }, "dueDate"},
		{"blank title", func(r *CreateCheckInRequest) { r.Title = "   " }, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockCheckInRepo{}
			svc := NewCheckInService(repo, nil, logger.NewNop())

			req := validRequest()
			tt.edit(&req)
			_, err := svc.CreateCheckIn(context.Background(), manager, req)

			appErr, ok := apperrors.As(err)
			if !ok || appErr.Code != apperrors.CodeInvalidInput {
				t.Fatalf("err = %v", err)
			}
			if len(appErr.Details) != 1 || appErr.Details[0].Field != tt.field {
				t.Fatalf("details = %+v", appErr.Details)
			}
			if repo.created.CreatedBy != "" {
				t.Fatalf("repository called despite invalid input")
			}
		})
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	svc := NewCheckInService(&mockCheckInRepo{}, pub, logger.NewNop())

	if _, err := svc.CreateCheckIn(context.Background(), manager, validRequest()); err != nil {
		t.Fatalf("CreateCheckIn: %v", err)
	}
	if _, err := svc.SubmitResponse(context.Background(), member, "c-1", SubmitResponseRequest{Answers: []models.Answer{{QuestionID: "q", Response: "r"}}}); err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	if len(pub.created) != 1 || len(pub.submitted) != 1 || pub.submitted[0] != "c-1/u-1" {
		t.Fatalf("publisher calls = %v %v", pub.created, pub.submitted)
	}
}

func TestStoreFailureSkipsPublish(t *testing.T) {
	pub := &mockPublisher{}
	repo := &mockCheckInRepo{err: apperrors.New(apperrors.CodeDatabaseError, "boom")}
	svc := NewCheckInService(repo, pub, logger.NewNop())

	if _, err := svc.CreateCheckIn(context.Background(), manager, validRequest()); apperrors.CodeOf(err) != apperrors.CodeDatabaseError {
		t.Fatalf("err = %v", err)
	}
	if len(pub.created) != 0 {
		t.Fatalf("published after failed write")
	}
}

func TestGetCheckInDetailsAccess(t *testing.T) {
	details := &models.CheckInDetails{
		CheckIn:     &models.CheckIn{ID: "c-1", CreatedBy: manager.UserID},
		Assignments: []*models.AssignmentDetail{{UserID: member.UserID}},
	}

	tests := []struct {
		name      string
		identity  auth.Identity
		wantCode  apperrors.ErrorCode
		wantReads int
	}{
		{"creator", manager, "", 1},
		{"assignee", member, "", 1},
		{"unrelated member", other, apperrors.CodeForbidden, 0},
		{"other manager", auth.Identity{UserID: "m-2", Role: models.RoleManager}, apperrors.CodeForbidden, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockCheckInRepo{details: details}
			svc := NewCheckInService(repo, nil, logger.NewNop())

			got, err := svc.GetCheckInDetails(context.Background(), tt.identity, "c-1")
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != details {
					t.Fatalf("details not returned")
				}
			} else if apperrors.CodeOf(err) != tt.wantCode {
				t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), tt.wantCode)
			}
			if repo.detailReads != tt.wantReads {
				t.Fatalf("detail reads = %d, want %d", repo.detailReads, tt.wantReads)
			}
		})
	}
}

func TestGetCheckInDetailsNotFoundFirst(t *testing.T) {
	repo := &mockCheckInRepo{err: apperrors.New(apperrors.CodeNotFound, "Check-in not found")}
	svc := NewCheckInService(repo, nil, logger.NewNop())

	if _, err := svc.GetCheckInDetails(context.Background(), other, "missing"); !apperrors.IsNotFound(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestSubmitResponseUsesIdentity(t *testing.T) {
	repo := &mockCheckInRepo{}
	svc := NewCheckInService(repo, nil, logger.NewNop())

	answers := []models.Answer{{QuestionID: "q-1", Response: "ok"}}
	resp, err := svc.SubmitResponse(context.Background(), member, "c-1", SubmitResponseRequest{Answers: answers})
	if err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	if resp.UserID != member.UserID || len(repo.submitted) != 1 {
		t.Fatalf("response = %+v", resp)
	}

	repo.err = apperrors.New(apperrors.CodeForbidden, "You are not assigned to this check-in")
	if _, err := svc.SubmitResponse(context.Background(), other, "c-1", SubmitResponseRequest{Answers: answers}); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Fatalf("err = %v", err)
	}
}

type mockDirectory struct {
	managerID string
}

func (d *mockDirectory) ListUsers(ctx context.Context) ([]models.SafeUser, error) {
	return []models.SafeUser{{ID: "m-1"}, {ID: "u-1"}}, nil
}

func (d *mockDirectory) ListByManager(ctx context.Context, managerID string) ([]models.UserSummary, error) {
	d.managerID = managerID
	return []models.UserSummary{{ID: "u-1", Name: "Alice"}}, nil
}

func TestUserService(t *testing.T) {
	dir := &mockDirectory{}
	svc := NewUserService(dir, logger.NewNop())

	users, err := svc.ListUsers(context.Background())
	if err != nil || len(users) != 2 {
		t.Fatalf("ListUsers = %v, %v", users, err)
	}

	members, err := svc.ListTeamMembers(context.Background(), manager)
	if err != nil || len(members) != 1 || dir.managerID != manager.UserID {
		t.Fatalf("ListTeamMembers = %v, %v (manager %q)", members, err, dir.managerID)
	}
}
