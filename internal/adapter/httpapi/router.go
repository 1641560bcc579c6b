package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires the handler into a gorilla/mux router with request
// logging.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(h.Logger))

	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	r.HandleFunc("/accounts", h.CreateAccountHandler).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}", h.GetAccountHandler).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/credit", h.CreditAccountHandler).Methods(http.MethodPost)

	r.HandleFunc("/transfers", h.CreateTransferHandler).Methods(http.MethodPost)
	r.HandleFunc("/transfers", h.ListTransfersHandler).Methods(http.MethodGet)
	r.HandleFunc("/transfers/{id}", h.GetTransferHandler).Methods(http.MethodGet)
	r.HandleFunc("/transfers/{id}/reverse", h.ReverseTransferHandler).Methods(http.MethodPost)

	return r
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
