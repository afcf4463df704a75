package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/ledger"
	"github.com/mcclellann/ikimina/pkg/store"
)

// Server holds the ledger instance.
type Server struct {
	ledger   *ledger.Ledger
	storage  store.Storage // Keep a reference to the storage to close it
	verifier *auth.Verifier
	log      *slog.Logger
}

func NewServer(l *ledger.Ledger, s store.Storage, v *auth.Verifier, log *slog.Logger) *Server {
	return &Server{
		ledger:   l,
		storage:  s,
		verifier: v,
		log:      log,
	}
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)
	router.HandleFunc("/healthz", s.healthHandler).Methods("GET")

	api := router.PathPrefix("/").Subrouter()
	api.Use(auth.Middleware(s.verifier, s.ledger, s.log))

	api.HandleFunc("/me", s.meHandler).Methods("GET")
	api.HandleFunc("/me/profile", s.updateProfileHandler).Methods("PUT")
	api.HandleFunc("/admin/overview", s.overviewHandler).Methods("GET")

	api.HandleFunc("/groups", s.listGroupsHandler).Methods("GET")
	api.HandleFunc("/groups", s.createGroupHandler).Methods("POST")
	api.HandleFunc("/groups/{gid}", s.getGroupHandler).Methods("GET")
	api.HandleFunc("/groups/{gid}", s.updateGroupHandler).Methods("PUT")
	api.HandleFunc("/groups/{gid}/members", s.listMembersHandler).Methods("GET")
	api.HandleFunc("/groups/{gid}/members", s.addMemberHandler).Methods("POST")
	api.HandleFunc("/groups/{gid}/members/{mid}/status", s.updateMemberHandler).Methods("PUT")
	api.HandleFunc("/groups/{gid}/rejoin", s.rejoinHandler).Methods("POST")

	api.HandleFunc("/groups/{gid}/contributions", s.listContributionsHandler).Methods("GET")
	api.HandleFunc("/groups/{gid}/contributions", s.recordContributionHandler).Methods("POST")
	api.HandleFunc("/contributions/{id}/pay", s.payContributionHandler).Methods("POST")
	api.HandleFunc("/contributions/{id}/status", s.contributionStatusHandler).Methods("PUT")

	api.HandleFunc("/groups/{gid}/loans", s.listLoansHandler).Methods("GET")
	api.HandleFunc("/groups/{gid}/loans", s.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	api.HandleFunc("/loans/{id}", s.rejectLoanHandler).Methods("DELETE")
	api.HandleFunc("/loans/{id}/approve", s.approveLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/repayments", s.listRepaymentsHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/repayments", s.recordRepaymentHandler).Methods("POST")

	api.HandleFunc("/groups/{gid}/summary", s.summaryHandler).Methods("GET")
	api.HandleFunc("/groups/{gid}/funds", s.fundsHandler).Methods("GET")
	api.HandleFunc("/groups/{gid}/reports/monthly", s.monthlyReportHandler).Methods("GET")

	api.HandleFunc("/groups/{gid}/announcements", s.listAnnouncementsHandler).Methods("GET")
	api.HandleFunc("/groups/{gid}/announcements", s.postAnnouncementHandler).Methods("POST")
	api.HandleFunc("/announcements/{id}/comments", s.listCommentsHandler).Methods("GET")
	api.HandleFunc("/announcements/{id}/comments", s.addCommentHandler).Methods("POST")
	api.HandleFunc("/notices", s.listNoticesHandler).Methods("GET")
	api.HandleFunc("/notices", s.postNoticeHandler).Methods("POST")

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	respond(w, status, map[string]string{"error": msg})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", ledger.ErrValidation, name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", ledger.ErrValidation, name)
	}
	return &id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", ledger.ErrValidation, err)
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. An empty string is the zero time.
func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ledger.ErrValidation, field)
	}
	return t, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
