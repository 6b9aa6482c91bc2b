package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"savings_circle_bot/internal/domain/community"
	"savings_circle_bot/internal/domain/errs"
)

// CommunityReader loads a community for the status endpoint.
type CommunityReader interface {
	Community(ctx context.Context, id uuid.UUID) (*community.Community, error)
}

// Server is the operations HTTP server: health, prometheus metrics and read-only
// community status.
type Server struct {
	srv    *http.Server
	reader CommunityReader
	log    *logrus.Entry
}

func NewServer(addr string, reader CommunityReader, log *logrus.Entry) *Server {
	s := &Server{reader: reader, log: log}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/communities/{id}", s.handleCommunity)
	return r
}

type communityStatus struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Members            int             `json:"members"`
	ActiveMembers      int             `json:"activeMembers"`
	CycleNumber        int             `json:"cycleNumber"`
	NextPayout         time.Time       `json:"nextPayout"`
	NextRecipient      string          `json:"nextRecipient"`
	PayoutAmount       decimal.Decimal `json:"payoutAmount"`
	TotalContribution  decimal.Decimal `json:"totalContribution"`
	BackupFund         decimal.Decimal `json:"backupFund"`
	CollectedPenalties decimal.Decimal `json:"collectedPenalties"`
	LockPayout         bool            `json:"lockPayout"`
}

func (s *Server) handleCommunity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid community id"})
		return
	}
	c, err := s.reader.Community(r.Context(), id)
	if errors.Is(err, errs.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("community_id", id).Error("Failed to load community status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := communityStatus{
		ID:                 c.ID,
		Name:               c.Name,
		Members:            len(c.Members),
		ActiveMembers:      len(c.ActiveMembers()),
		NextPayout:         c.NextPayout,
		NextRecipient:      c.PayoutDetails.NextRecipient,
		PayoutAmount:       c.PayoutDetails.PayoutAmount,
		TotalContribution:  c.TotalContribution,
		BackupFund:         c.BackupFund,
		CollectedPenalties: c.CollectedPenalties,
		LockPayout:         c.LockPayout,
	}
	if latest := c.LatestCycle(); latest != nil {
		status.CycleNumber = latest.Number
	}
	writeJSON(w, http.StatusOK, status)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("Ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
