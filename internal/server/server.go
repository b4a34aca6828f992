// Package server is the network adapter: websocket clients, lobby and
// leaderboard routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/game"
	"github.com/pefman/tower-duel/internal/matchmaking"
	"github.com/pefman/tower-duel/internal/models"
	apperrors "github.com/pefman/tower-duel/internal/platform/errors"
	"github.com/pefman/tower-duel/internal/players"
	"github.com/pefman/tower-duel/internal/stats"
)

var tracer = otel.Tracer("towerduel/server")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Options wires a Server. Store and Daily are optional.
type Options struct {
	Hub         *Hub
	Coordinator *matchmaking.Coordinator
	Store       players.Store
	Daily       *stats.Daily
	Logger      *zap.Logger
	Version     string
	BuildTime   string
}

type Server struct {
	hub   *Hub
	mm    *matchmaking.Coordinator
	store players.Store
	daily *stats.Daily
	log   *zap.Logger

	version   string
	buildTime string
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	return &Server{
		hub:       opts.Hub,
		mm:        opts.Coordinator,
		store:     opts.Store,
		daily:     opts.Daily,
		log:       opts.Logger.Named("server"),
		version:   opts.Version,
		buildTime: opts.BuildTime,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/lobby", s.handleLobby).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/daily", s.handleLeaderboardDaily).Methods(http.MethodGet)
	r.HandleFunc("/debug/rooms", s.handleDebugRooms).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
			"time":    s.buildTime,
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return withCORS(r)
}

// ===== HTTP =====

func (s *Server) handleLobby(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mm.Lobby())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []players.Record{})
		return
	}
	recs, err := s.store.TopPlayers(r.Context(), limit)
	if err != nil {
		s.log.Warn("leaderboard fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "leaderboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleLeaderboardDaily(w http.ResponseWriter, r *http.Request) {
	if s.daily == nil {
		writeJSON(w, http.StatusOK, stats.DailyStats{})
		return
	}
	writeJSON(w, http.StatusOK, s.daily.Get())
}

// Debug: Inspect rooms and queue
func (s *Server) handleDebugRooms(w http.ResponseWriter, r *http.Request) {
	lobby := s.mm.Lobby()
	writeJSON(w, http.StatusOK, map[string]any{
		"queueLen": len(lobby.Queue),
		"queue":    lobby.Queue,
		"rooms":    lobby.Rooms,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": msg,
		"status":  code,
	})
}

// simple CORS for GET/OPTIONS
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ===== WebSocket =====

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name := players.NormalizeUsername(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	codec, err := codecByName(r.URL.Query().Get("codec"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{name: name, codec: codec, conn: conn, send: make(chan []byte, sendBuffer)}
	if err := s.hub.register(c); err != nil {
		if frame, encErr := codec.Encode(errorMsg(apperrors.New(apperrors.CodeInvalidRequest, err.Error()))); encErr == nil {
			_ = conn.WriteMessage(codec.FrameType(), frame)
		}
		_ = conn.Close()
		return
	}
	s.log.Info("ws connect", zap.String("player", name), zap.String("codec", codec.Name()), zap.String("from", r.RemoteAddr))

	go c.writePump()
	s.readPump(c)
}

// readPump dispatches inbound frames until the connection drops.
func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.unregister(c)
		s.mm.Disconnect(c.name)
		s.log.Info("ws closed", zap.String("player", c.name))
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("ws read error", zap.String("player", c.name), zap.Error(err))
			}
			return
		}
		typ, raw, err := c.codec.DecodeEnvelope(frame)
		if err != nil {
			s.hub.sendTo(c, errorMsg(apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed message", err)))
			continue
		}
		if err := s.dispatch(context.Background(), c, typ, raw); err != nil {
			s.hub.sendTo(c, errorMsg(err))
		}
	}
}

// dispatch handles one inbound intent inside a span.
func (s *Server) dispatch(ctx context.Context, c *client, typ string, raw []byte) (err error) {
	ctx, span := tracer.Start(ctx, "ws."+typ, trace.WithAttributes(attribute.String("player", c.name)))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("error.code", string(apperrors.CodeOf(err))))
		}
		span.End()
	}()

	switch typ {
	case models.InJoinQueue:
		var in models.JoinQueue
		if err := c.codec.DecodeData(raw, &in); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed join-queue", err)
		}
		general, err := board.ParseKind(in.General)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidRequest, "unknown general", err)
		}
		card, ok := game.ParseCard(strings.TrimSpace(in.Card))
		if !ok {
			return apperrors.New(apperrors.CodeInvalidRequest, "unknown card")
		}
		return s.mm.Enqueue(ctx, matchmaking.JoinRequest{Username: c.name, General: general, Card: card})

	case models.InLeaveQueue:
		s.mm.Leave(c.name)
		return nil

	case models.InSubmitAction:
		var in models.SubmitAction
		if err := c.codec.DecodeData(raw, &in); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed submit-action", err)
		}
		span.SetAttributes(attribute.String("session", in.SessionID))
		sess, err := s.mm.Registry().Get(in.SessionID)
		if err != nil {
			return err
		}
		side, ok := sess.SideOf(c.name)
		if !ok {
			return apperrors.New(apperrors.CodeInvalidRequest, "not a participant of this session")
		}
		if in.Side != "" {
			claimed, err := board.ParseSide(in.Side)
			if err != nil || claimed != side {
				return apperrors.New(apperrors.CodeNotYourTurn, "side does not match your connection")
			}
		}
		span.SetAttributes(attribute.String("side", side.String()))
		_, err = sess.SubmitAction(side, in.From, in.To)
		return err

	case models.InEndSession:
		var in models.EndSession
		if err := c.codec.DecodeData(raw, &in); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed end-session", err)
		}
		span.SetAttributes(attribute.String("session", in.SessionID))
		return s.mm.EndSession(in.SessionID, c.name)
	}
	return apperrors.WithMetadata(apperrors.CodeInvalidRequest, "unknown message type", map[string]string{"type": typ})
}

func errorMsg(err error) models.WsMsg {
	msg := err.Error()
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return models.WsMsg{Type: "error", Data: models.ErrorMsg{Code: string(apperrors.CodeOf(err)), Message: msg}}
}
