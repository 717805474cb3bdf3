package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/beka-birhanu/claw-arbiter/service/i"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	requestTimeout = 15 * time.Second
	maxBodyBytes   = 64 << 10
	banner         = "claw arbiter running"
)

// Events understood by POST /send-event. Anything else is forwarded.
const (
	eventInitGame   = "init-game"
	eventMove       = "move"
	eventGrab       = "grab"
	eventJoinQueue  = "join-queue"
	eventLeaveQueue = "leave-queue"
)

// EventRequest is the body of POST /send-event.
type EventRequest struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// eventData is the union of the command fields carried in EventRequest.Data.
type eventData struct {
	ClientID  string   `json:"clientId"`
	Direction string   `json:"direction"`
	Active    *bool    `json:"active"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Source    string   `json:"source"`
	Force     bool     `json:"force"`
}

type response struct {
	Success   bool              `json:"success"`
	Result    any               `json:"result,omitempty"`
	GameState *model.RoundState `json:"gameState,omitempty"`
	Error     string            `json:"error,omitempty"`
	Code      string            `json:"code,omitempty"`
}

// HTTPServer exposes the command router over HTTP.
type HTTPServer struct {
	router    i.CommandRouter
	websocket http.Handler
	logger    i.Logger
}

// NewHTTPServer creates an HTTPServer. ws, when not nil, is mounted at /ws.
func NewHTTPServer(router i.CommandRouter, ws http.Handler, logger i.Logger) (*HTTPServer, error) {
	if router == nil {
		return nil, ErrMissingRouter
	}
	return &HTTPServer{router: router, websocket: ws, logger: logger}, nil
}

// Routes builds the chi router.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	if s.websocket != nil {
		r.Handle("/ws", s.websocket)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requestLogger)
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/", s.handleBanner)
		r.Get("/health", s.handleHealth)
		r.Post("/send-event", s.handleSendEvent)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/queue", s.handleQueueStatus)
			r.Post("/queue/join", s.handleJoin)
			r.Post("/queue/leave", s.handleLeave)

			r.Get("/game", s.handleGameState)
			r.Post("/game/init", s.handleInit)
			r.Post("/game/move", s.handleMove)
			r.Post("/game/grab", s.handleGrab)
		})
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info(fmt.Sprintf("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(),
			time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context())))
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error(fmt.Sprintf("writing response: %s", err))
	}
}

func (s *HTTPServer) writeResult(w http.ResponseWriter, result any) {
	s.writeJSON(w, http.StatusOK, response{Success: true, Result: result})
}

func (s *HTTPServer) writeError(w http.ResponseWriter, err error) {
	_, status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(err.Error())
	}
	s.writeJSON(w, status, response{Error: err.Error(), Code: code})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBadPayload, err)
}

func (s *HTTPServer) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, banner)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeResult(w, s.router.QueueStatus())
}

func (s *HTTPServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinQueueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.router.JoinQueue(req.ClientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *HTTPServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req LeaveQueueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.router.LeaveQueue(req.ClientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *HTTPServer) handleGameState(w http.ResponseWriter, _ *http.Request) {
	state := s.router.GameState()
	s.writeJSON(w, http.StatusOK, response{Success: true, GameState: &state})
}

func (s *HTTPServer) handleInit(w http.ResponseWriter, r *http.Request) {
	var req InitGameRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = "http"
	}
	state := s.router.InitGame(r.Context(), req.Source, req.Force)
	s.writeJSON(w, http.StatusOK, response{Success: true, GameState: &state})
}

func (s *HTTPServer) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.router.Move(r.Context(), req.ClientID, req.Direction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *HTTPServer) handleGrab(w http.ResponseWriter, r *http.Request) {
	var req GrabRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.router.Grab(r.Context(), req.ClientID, req.isActive(), req.point())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

// handleSendEvent accepts the single-endpoint event envelope used by the
// joystick and display clients.
func (s *HTTPServer) handleSendEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	var data eventData
	if len(req.Data) > 0 && req.Event != "" && isCommand(req.Event) {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			s.writeError(w, fmt.Errorf("%w: %s", ErrBadPayload, err))
			return
		}
	}

	ctx := r.Context()
	var (
		result any
		err    error
	)
	switch req.Event {
	case eventInitGame:
		source := data.Source
		if source == "" {
			source = "send-event"
		}
		state := s.router.InitGame(ctx, source, data.Force)
		s.writeJSON(w, http.StatusOK, response{Success: true, GameState: &state})
		return
	case eventMove:
		result, err = s.router.Move(ctx, data.ClientID, data.Direction)
	case eventGrab:
		var at *model.Point
		if data.X != nil && data.Y != nil {
			at = &model.Point{X: *data.X, Y: *data.Y}
		}
		// a grab without "active" is a release here, as the joystick sends it
		active := data.Active != nil && *data.Active
		result, err = s.router.Grab(ctx, data.ClientID, active, at)
	case eventJoinQueue:
		result, err = s.router.JoinQueue(data.ClientID)
	case eventLeaveQueue:
		result, err = s.router.LeaveQueue(data.ClientID)
	default:
		var payload any
		if len(req.Data) > 0 {
			payload = req.Data
		}
		err = s.router.Forward(req.Channel, req.Event, payload)
	}

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, result)
}

func isCommand(event string) bool {
	switch event {
	case eventInitGame, eventMove, eventGrab, eventJoinQueue, eventLeaveQueue:
		return true
	}
	return false
}
