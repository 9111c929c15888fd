package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/qri-io/jsonschema"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
)

const (
	userA = "7f1c2b9e-4c1d-4a8e-9b7a-0d5c3e2f1a01"
	userB = "7f1c2b9e-4c1d-4a8e-9b7a-0d5c3e2f1a02"
)

func TestCreateCheckInSchema(t *testing.T) {
	v := Default()
	ctx := context.Background()

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name: "minimal valid",
			body: `{"title":"Weekly Sync","questions":["How was your week?"],"dueDate":"2030-01-01T00:00:00Z","assignedUserIds":["` + userA + `"]}`,
		},
		{
			name:      "no questions",
			body:      `{"title":"Weekly Sync","questions":[],"dueDate":"2030-01-01T00:00:00Z","assignedUserIds":["` + userA + `"]}`,
			wantField: "questions",
		},
		{
			name:      "no assignees",
			body:      `{"title":"Weekly Sync","questions":["q"],"dueDate":"2030-01-01T00:00:00Z","assignedUserIds":[]}`,
			wantField: "assignedUserIds",
		},
		{
			name:      "duplicate assignees",
			body:      `{"title":"Weekly Sync","questions":["q"],"dueDate":"2030-01-01T00:00:00Z","assignedUserIds":["` + userA + `","` + userA + `"]}`,
			wantField: "assignedUserIds",
		},
		{
			name:      "assignee is not a uuid",
			body:      `{"title":"Weekly Sync","questions":["q"],"dueDate":"2030-01-01T00:00:00Z","assignedUserIds":["bob"]}`,
			wantField: "assignedUserIds.0",
		},
		{
			name:      "bad due date",
			body:      `{"title":"Weekly Sync","questions":["q"],"dueDate":"next friday","assignedUserIds":["` + userB + `"]}`,
			wantField: "dueDate",
		},
		{
			name:      "title too long",
			body:      `{"title":"` + strings.Repeat("x", 201) + `","questions":["q"],"dueDate":"2030-01-01T00:00:00Z","assignedUserIds":["` + userB + `"]}`,
			wantField: "title",
		},
		{
			name:      "empty question text",
			body:      `{"title":"t","questions":[""],"dueDate":"2030-01-01T00:00:00Z","assignedUserIds":["` + userB + `"]}`,
			wantField: "questions.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(ctx, SchemaCreateCheckIn, []byte(tt.body))
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			assertField(t, err, tt.wantField)
		})
	}
}

func TestSubmitResponseSchema(t *testing.T) {
	v := Default()
	ctx := context.Background()

	valid := `{"answers":[{"questionId":"` + userA + `","response":"Good"}]}`
	if err := v.Validate(ctx, SchemaSubmitResponse, []byte(valid)); err != nil {
		t.Fatalf("valid body rejected: %v", err)
	}

	assertField(t, v.Validate(ctx, SchemaSubmitResponse, []byte(`{"answers":[]}`)), "answers")
	assertField(t, v.Validate(ctx, SchemaSubmitResponse, []byte(`{"answers":[{"questionId":"`+userA+`","response":""}]}`)), "answers.0.response")
}

func TestMissingRequiredField(t *testing.T) {
	err := Default().Validate(context.Background(), SchemaRefresh, []byte(`{}`))

	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.CodeInvalidInput {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(appErr.Details) == 0 {
		t.Fatalf("expected field details")
	}
	found := false
	for _, d := range appErr.Details {
		if strings.Contains(d.Field, "refreshToken") || strings.Contains(d.Message, "refreshToken") {
			found = true
		}
	}
	if !found {
		t.Fatalf("details do not mention refreshToken: %+v", appErr.Details)
	}
}

func TestMalformedJSON(t *testing.T) {
	err := Default().Validate(context.Background(), SchemaLogin, []byte(`{"email":`))
	assertField(t, err, "body")
}

func TestDecode(t *testing.T) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := Default().Decode(context.Background(), SchemaLogin, []byte(`{"email":"sarah@example.com","password":"secret"}`), &body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Email != "sarah@example.com" || body.Password != "secret" {
		t.Fatalf("decoded %+v", body)
	}
}

func TestUnknownSchema(t *testing.T) {
	err := Default().Validate(context.Background(), "nope", []byte(`{}`))
	if apperrors.CodeOf(err) != apperrors.CodeInternalServer {
		t.Fatalf("got %v", err)
	}
}

func TestDetails(t *testing.T) {
	details := Details([]jsonschema.KeyError{
		{PropertyPath: "/", Message: `"title" value is required`},
		{PropertyPath: "/answers/0", Message: `"response" value is required`},
		{PropertyPath: "/dueDate", Message: "invalid date-time"},
		{PropertyPath: "/dueDate", Message: "invalid date-time"},
	})

	want := []apperrors.FieldError{
		{Field: "answers.0.response", Message: `"response" value is required`, Code: CodeRequired},
		{Field: "dueDate", Message: "invalid date-time", Code: CodeInvalid},
		{Field: "title", Message: `"title" value is required`, Code: CodeRequired},
	}
	if len(details) != len(want) {
		t.Fatalf("got %+v", details)
	}
	for i := range want {
		if details[i] != want[i] {
			t.Fatalf("detail %d = %+v, want %+v", i, details[i], want[i])
		}
	}
}

func assertField(t *testing.T, err error, field string) {
	t.Helper()

	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.CodeInvalidInput {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, d := range appErr.Details {
		if d.Field == field {
			return
		}
	}
	t.Fatalf("no detail for %q in %+v", field, appErr.Details)
}
