package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
)

type RouterConfig struct {
	Auth       *AuthHandler
	Health     *api.HealthHandler
	Logger     *logger.Logger
	CORSOrigin string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = api.NotFound()
	r.MethodNotAllowedHandler = api.MethodNotAllowed()

	r.HandleFunc("/health", cfg.Health.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/login", cfg.Auth.Login).Methods(http.MethodPost)
	v1.HandleFunc("/refresh", cfg.Auth.Refresh).Methods(http.MethodPost)
	v1.HandleFunc("/logout", cfg.Auth.Logout).Methods(http.MethodPost)

	return api.Chain(r,
		api.Recovery(cfg.Logger),
		api.Logging(cfg.Logger),
		api.CORS(cfg.CORSOrigin),
	)
}
