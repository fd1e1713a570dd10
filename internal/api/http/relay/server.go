package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/oshokin/cry-relay/internal/clock"
	"github.com/oshokin/cry-relay/internal/command"
	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	"github.com/oshokin/cry-relay/internal/logger"
	repo "github.com/oshokin/cry-relay/internal/repository/episode"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	OnTrigger(ctx context.Context, now time.Time) domain.Outcome
	OnCommand(ctx context.Context, cmd domain.Command) string
	Enabled() bool
	Today(ctx context.Context) (string, []domain.Record, error)
}

// Options configures webhook authentication.
type Options struct {
	// ChatID restricts commands to one chat. Empty accepts any chat.
	ChatID string
	// WebhookSecret must match the X-Telegram-Bot-Api-Secret-Token header when set.
	WebhookSecret string
}

// SecretHeader carries the webhook secret configured with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server routes the relay endpoints.
type Server struct {
	// service provides the detector operations.
	service Service
	// clock stamps incoming triggers.
	clock clock.Clock
	// opts holds webhook authentication settings.
	opts Options
	// mux dispatches by method and path.
	mux *http.ServeMux
}

// NewServer wires service into the HTTP routes.
func NewServer(service Service, clk clock.Clock, opts Options) *Server {
	if clk == nil {
		clk = clock.System{}
	}

	s := &Server{
		service: service,
		clock:   clk,
		opts:    opts,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("POST /alert", s.handleAlert)
	s.mux.HandleFunc("POST /telegram", s.handleTelegram)
	s.mux.HandleFunc("GET /today", s.handleToday)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithFields(r.Context(), "method", r.Method, "path", r.URL.Path)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

// healthResponse is the body of GET /.
type healthResponse struct {
	Status        string `json:"status"`
	SystemEnabled bool   `json:"system_enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, healthResponse{
		Status:        "ok",
		SystemEnabled: s.service.Enabled(),
	})
}

// alertResponse is the body of POST /alert.
type alertResponse struct {
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	NewEpisode *bool  `json:"new_episode,omitempty"`
	Notified   *bool  `json:"notified,omitempty"`
	Deduped    *bool  `json:"deduped,omitempty"`
	Acked      *bool  `json:"acked,omitempty"`
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	outcome := s.service.OnTrigger(r.Context(), s.clock.Now())

	writeJSON(r.Context(), w, http.StatusOK, toAlertResponse(outcome))
}

// toAlertResponse converts an outcome to its JSON shape.
func toAlertResponse(o domain.Outcome) alertResponse {
	switch o.Kind {
	case domain.OutcomeSuppressed:
		return alertResponse{Success: false, Reason: o.Reason}
	case domain.OutcomeDeduped:
		return alertResponse{Success: true, Deduped: ptr(true)}
	case domain.OutcomeNewEpisode:
		return alertResponse{Success: true, NewEpisode: ptr(true), Notified: ptr(o.Notified)}
	default:
		resp := alertResponse{Success: true, NewEpisode: ptr(false), Notified: ptr(o.Notified)}
		if o.Acknowledged {
			resp.Acked = ptr(true)
		}

		return resp
	}
}

// okResponse acknowledges a webhook delivery.
type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.opts.WebhookSecret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) != 1 {
			logger.Warn(ctx, "Webhook call with a bad secret token")
			writeJSON(ctx, w, http.StatusUnauthorized, okResponse{OK: false})

			return
		}
	}

	var u models.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&u); err != nil {
		logger.DebugKV(ctx, "Ignoring malformed webhook body", "error", err)
		writeJSON(ctx, w, http.StatusOK, okResponse{OK: true})

		return
	}

	if u.Message == nil {
		writeJSON(ctx, w, http.StatusOK, okResponse{OK: true})

		return
	}

	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	ctx = logger.WithKV(ctx, "chat_id", chatID)

	if s.opts.ChatID != "" && chatID != s.opts.ChatID {
		logger.Warn(ctx, "Ignoring command from a foreign chat")
		writeJSON(ctx, w, http.StatusOK, okResponse{OK: true})

		return
	}

	s.service.OnCommand(ctx, command.Parse(u.Message.Text))

	writeJSON(ctx, w, http.StatusOK, okResponse{OK: true})
}

// episodeJSON is one record in GET /today.
type episodeJSON struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// todayResponse is the body of GET /today.
type todayResponse struct {
	Date     string        `json:"date"`
	CryCount int           `json:"cry_count"`
	Episodes []episodeJSON `json:"episodes"`
}

// errorResponse reports a failed read.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, records, err := s.service.Today(ctx)
	if err != nil {
		msg := "episode store unavailable"
		if errors.Is(err, repo.ErrStoreDisabled) {
			msg = "episode store not configured"
		}

		writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: msg})

		return
	}

	episodes := make([]episodeJSON, 0, len(records))
	for _, rec := range records {
		episodes = append(episodes, episodeJSON{Date: rec.Date, Time: rec.Time})
	}

	writeJSON(ctx, w, http.StatusOK, todayResponse{
		Date:     date,
		CryCount: len(episodes),
		Episodes: episodes,
	})
}

// writeJSON encodes body with status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.DebugKV(ctx, "Failed to write response", "error", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
