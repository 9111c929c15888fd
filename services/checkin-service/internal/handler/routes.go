package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

type RouterConfig struct {
	CheckIns   *CheckInHandler
	Users      *UserHandler
	Health     *api.HealthHandler
	Tokens     api.TokenVerifier
	Logger     *logger.Logger
	CORSOrigin string
}

// NewRouter builds the check-in API. CORS sits outside the router so
// preflight requests never reach route matching.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = api.NotFound()
	r.MethodNotAllowedHandler = api.MethodNotAllowed()

	// Open endpoints
	r.HandleFunc("/health", cfg.Health.Health).Methods(http.MethodGet)

	// Protected routes, served at the stage root like the API Gateway resources
	protected := r.NewRoute().Subrouter()
	protected.Use(api.Authenticate(cfg.Tokens))

	managerOnly := api.RequireRole(models.RoleManager)

	// Check-in endpoints
	protected.Handle("/checkins", managerOnly(http.HandlerFunc(cfg.CheckIns.CreateCheckIn))).Methods(http.MethodPost)
	protected.Handle("/checkins/manager", managerOnly(http.HandlerFunc(cfg.CheckIns.GetManagerCheckIns))).Methods(http.MethodGet)
	protected.HandleFunc("/checkins/assigned", cfg.CheckIns.GetAssignedCheckIns).Methods(http.MethodGet)
	protected.HandleFunc("/checkins/{checkInId}/details", cfg.CheckIns.GetCheckInDetails).Methods(http.MethodGet)
	protected.HandleFunc("/checkins/{checkInId}", cfg.CheckIns.GetCheckInDetails).Methods(http.MethodGet)
	protected.HandleFunc("/checkins/{checkInId}/responses", cfg.CheckIns.SubmitResponse).Methods(http.MethodPost)

	// User endpoints
	protected.Handle("/users", managerOnly(http.HandlerFunc(cfg.Users.ListUsers))).Methods(http.MethodGet)
	protected.Handle("/users/manager/members", managerOnly(http.HandlerFunc(cfg.Users.ListTeamMembers))).Methods(http.MethodGet)

	return api.Chain(r,
		api.Recovery(cfg.Logger),
		api.Logging(cfg.Logger),
		api.CORS(cfg.CORSOrigin),
	)
}
