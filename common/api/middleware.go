package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Sakethtadimeti/checkin-app/common/auth"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

var errPanic = errors.New("handler panicked")

// TokenVerifier verifies the Authorization header of a request.
type TokenVerifier interface {
	VerifyBearer(header string) (*auth.AccessClaims, error)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Chain wraps h so the first middleware is the outermost.
func Chain(h http.Handler, mws ...mux.MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func Logging(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
			)
		})
	}
}

func Recovery(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Recovered from panic", "panic", fmt.Sprint(rec), "path", r.URL.Path)
					WriteError(w, nil, apperrors.Wrap(errPanic, apperrors.CodeInternalServer, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func CORS(origin string) mux.MiddlewareFunc {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate verifies the bearer access token and stores the caller's
// identity on the request context. Handlers behind it can rely on
// auth.IdentityFrom succeeding.
func Authenticate(tokens TokenVerifier) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.VerifyBearer(r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, nil, apperrors.Wrap(err, apperrors.CodeUnauthorized, authMessage(err)))
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.IdentityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers whose role differs with 403.
func RequireRole(role models.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFrom(r.Context())
			if !ok {
				WriteError(w, nil, apperrors.New(apperrors.CodeUnauthorized, "Authentication required"))
				return
			}
			if id.Role != role {
				WriteError(w, nil, apperrors.New(apperrors.CodeForbidden, fmt.Sprintf("Access denied: %s role required", role)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingHeader):
		return "Access token is required"
	case errors.Is(err, auth.ErrMalformedHeader):
		return "Authorization header must use the Bearer scheme"
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "Token is not yet valid"
	case errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token type"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}
