package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/pefman/tower-duel/internal/players"
)

var tracer = otel.Tracer("towerduel/api")

// Handler serves the player data API over a players.Store.
type Handler struct {
	store players.Store
	log   *zap.Logger
}

// NewHandler wires the player routes.
func NewHandler(store players.Store, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{store: store, log: logger}

	r := mux.NewRouter()
	r.HandleFunc("/api/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/players", h.createPlayer).Methods(http.MethodPost)
	r.HandleFunc("/api/players/{username}", h.getPlayer).Methods(http.MethodGet)
	r.HandleFunc("/api/players/{username}/bonus", h.ratingBonus).Methods(http.MethodPost)
	r.HandleFunc("/api/top-rankings", h.topRankings).Methods(http.MethodGet)
	r.HandleFunc("/api/match-results", h.matchResult).Methods(http.MethodPost)
	r.HandleFunc("/api/bot-match-results", h.botMatchResult).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return withCORS(r)
}

func (h *Handler) getPlayer(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	ctx, span := tracer.Start(r.Context(), "api.GetPlayer")
	defer span.End()
	span.SetAttributes(attribute.String("player", username))

	rec, err := h.store.FindPlayer(ctx, username)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, "get player", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) createPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.CreatePlayer")
	defer span.End()

	var req CreatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}
	span.SetAttributes(attribute.String("player", req.Username))
	rec, err := h.store.CreatePlayer(ctx, req.Username)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, "create player", err)
		return
	}
	h.log.Info("player created", zap.String("player", rec.Username))
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) topRankings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.TopRankings")
	defer span.End()

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	recs, err := h.store.TopPlayers(ctx, limit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, "top rankings", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) matchResult(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.MatchResult")
	defer span.End()

	var req MatchResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Winner == "" || req.Loser == "" {
		writeError(w, http.StatusBadRequest, "winner and loser are required")
		return
	}
	span.SetAttributes(attribute.String("winner", req.Winner), attribute.String("loser", req.Loser))
	update, err := h.store.ApplyMatchResult(ctx, req.Winner, req.Loser)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, "match result", err)
		return
	}
	h.log.Info("match rated",
		zap.String("winner", update.Winner.Username),
		zap.String("loser", update.Loser.Username),
		zap.Int("delta", update.Delta))
	writeJSON(w, http.StatusOK, update)
}

func (h *Handler) botMatchResult(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.BotMatchResult")
	defer span.End()

	var req BotMatchResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	span.SetAttributes(attribute.String("player", req.Username), attribute.Bool("bot_won", req.BotWon))
	rec, err := h.store.ApplyBotMatchResult(ctx, req.Username, req.BotWon)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, "bot match result", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) ratingBonus(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	ctx, span := tracer.Start(r.Context(), "api.RatingBonus")
	defer span.End()

	var req BonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	span.SetAttributes(attribute.String("player", username), attribute.Int("amount", req.Amount))
	rec, err := h.store.ApplyRatingBonus(ctx, username, req.Amount)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, "rating bonus", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, players.ErrNotFound):
		writeError(w, http.StatusNotFound, "player not found")
	case errors.Is(err, players.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "player already exists")
	default:
		h.log.Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: msg,
		Status:  code,
	})
}

// simple CORS for GET/POST/OPTIONS
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
