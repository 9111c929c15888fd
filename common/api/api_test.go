package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/mux"
	"go.uber.org/goleak"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/auth"
	"github.com/Sakethtadimeti/checkin-app/common/clock"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	tokens = auth.NewTokenService("middleware-secret", 15*time.Minute, time.Hour, clock.Real())
	sarah  = &models.User{ID: "m-1", Email: "sarah@example.com", Role: models.RoleManager}
	alice  = &models.User{ID: "u-1", Email: "alice@example.com", Role: models.RoleMember}
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorEnvelope {
	t.Helper()
	var body api.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func protected() http.Handler {
	r := mux.NewRouter()
	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(api.Authenticate(tokens))
	authed.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFrom(r.Context())
		api.WriteSuccess(w, http.StatusOK, "", map[string]string{"userId": id.UserID})
	}).Methods(http.MethodGet)

	managers := authed.PathPrefix("/manage").Subrouter()
	managers.Use(api.RequireRole(models.RoleManager))
	managers.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		api.WriteSuccess(w, http.StatusOK, "ok", nil)
	}).Methods(http.MethodGet)

	r.NotFoundHandler = api.NotFound()
	return r
}

func TestAuthenticateAndRoleGate(t *testing.T) {
	managerToken, _ := tokens.IssueAccess(sarah)
	memberToken, _ := tokens.IssueAccess(alice)
	refreshToken, _ := tokens.IssueRefresh(sarah)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantLabel  string
	}{
		{"no header", "/api/me", "", http.StatusUnauthorized, "Authentication failed"},
		{"wrong scheme", "/api/me", "Token " + memberToken, http.StatusUnauthorized, "Authentication failed"},
		{"refresh token", "/api/me", "Bearer " + refreshToken, http.StatusUnauthorized, "Authentication failed"},
		{"member reads own identity", "/api/me", "Bearer " + memberToken, http.StatusOK, ""},
		{"member on manager route", "/api/manage", "Bearer " + memberToken, http.StatusForbidden, "Forbidden"},
		{"manager on manager route", "/api/manage", "Bearer " + managerToken, http.StatusOK, ""},
	}

	h := protected()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantLabel != "" {
				body := decodeError(t, rec)
				if body.Success || body.Error != tt.wantLabel || body.Message == "" {
					t.Fatalf("unexpected envelope %+v", body)
				}
			}
		})
	}
}

func TestRefreshTokenMessage(t *testing.T) {
	refreshToken, _ := tokens.IssueRefresh(alice)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	rec := httptest.NewRecorder()
	protected().ServeHTTP(rec, req)

	if body := decodeError(t, rec); body.Message != "Invalid token type" {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	protected().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if body := decodeError(t, rec); body.Error != "Not found" {
		t.Fatalf("label = %q", body.Error)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, logger.NewNop(), apperrors.Wrap(context.DeadlineExceeded, apperrors.CodeDatabaseError, "query checkins table"))

	body := decodeError(t, rec)
	if rec.Code != http.StatusInternalServerError || body.Message != "An unexpected error occurred" {
		t.Fatalf("got %d %+v", rec.Code, body)
	}
	if strings.Contains(rec.Body.String(), "deadline") {
		t.Fatalf("store error leaked: %s", rec.Body.String())
	}
}

func TestWriteErrorValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, nil, apperrors.NewValidation([]apperrors.FieldError{{Field: "title", Message: "required", Code: "required"}}))

	body := decodeError(t, rec)
	if rec.Code != http.StatusBadRequest || body.Error != "Validation failed" || len(body.Details) != 1 {
		t.Fatalf("got %d %+v", rec.Code, body)
	}
}

func TestRecoveryAndLogging(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	h := api.Chain(panicking, api.Recovery(logger.NewNop()), api.Logging(logger.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Success {
		t.Fatalf("panic reported as success")
	}
}

func TestCORS(t *testing.T) {
	called := false
	h := api.CORS("https://app.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/checkins", nil))
	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("preflight status = %d, called = %v", rec.Code, called)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("origin = %q", got)
	}
}

func TestReadBody(t *testing.T) {
	if _, err := api.ReadBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))); apperrors.CodeOf(err) != apperrors.CodeInvalidInput {
		t.Fatalf("empty body: %v", err)
	}

	large := strings.Repeat("a", api.MaxBodyBytes+1)
	if _, err := api.ReadBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(large))); apperrors.CodeOf(err) != apperrors.CodeInvalidInput {
		t.Fatalf("oversized body: %v", err)
	}

	body, err := api.ReadBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))
	if err != nil || string(body) != `{"a":1}` {
		t.Fatalf("ReadBody = %q, %v", body, err)
	}
}

func TestLambdaHandler(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := api.ReadBody(r)
		api.WriteSuccess(w, http.StatusCreated, r.URL.Query().Get("q"), json.RawMessage(body))
	}).Methods(http.MethodPost)

	proxy := api.NewLambdaHandler(api.Chain(r, api.CORS("https://app.example.com")))
	resp, err := proxy(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodPost,
		Path:                  "/echo",
		Headers:               map[string]string{"Content-Type": "application/json"},
		QueryStringParameters: map[string]string{"q": "hello"},
		Body:                  `{"x":1}`,
		RequestContext:        events.APIGatewayProxyRequestContext{DomainName: "api.example.com", Stage: "dev"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := http.Header(resp.MultiValueHeaders).Get("Content-Type"); got != "application/json" {
		t.Fatalf("headers = %v", resp.MultiValueHeaders)
	}
	if got := http.Header(resp.MultiValueHeaders).Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("CORS header = %q", got)
	}

	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Message != "hello" || string(env.Data) != `{"x":1}` {
		t.Fatalf("envelope = %+v", env)
	}
}
