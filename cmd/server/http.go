package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"calendefi/internal/calendar"
	"calendefi/internal/domain"
	"calendefi/internal/execution"
	"calendefi/internal/ledger"
	"calendefi/internal/observability"
	"calendefi/internal/scheduler"
	"calendefi/internal/service"
	"calendefi/internal/storage"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /api/calendar/onboard", s.handleOnboard)
	mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	mux.HandleFunc("POST /api/calendar/check-events", s.handleCheckEvents)
	mux.HandleFunc("GET /api/calendar/events", s.handleUpcomingEvents)
	mux.HandleFunc("POST /api/calendar/create-event", s.handleCreateEvent)
	mux.HandleFunc("GET /api/calendar/scheduled-events/{calendarId}", s.handleScheduledEvents)
	mux.HandleFunc("GET /api/calendar/pending-events/{calendarId}", s.handlePendingEvents)
	mux.HandleFunc("GET /api/calendar/event-statuses/{calendarId}", s.handleEventStatuses)
	mux.HandleFunc("GET /api/event/status/{eventId}", s.handleEventStatus)
	mux.HandleFunc("GET /api/wallet/{calendarId}", s.handleWallet)
	mux.HandleFunc("GET /api/calendar/wallet/{calendarId}", s.handleWallet)
	mux.HandleFunc("POST /api/transaction/execute", s.handleExecute)

	return mux
}

// apiResponse is the envelope of every /api response.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, code, apiResponse{Error: err.Error()})
}

// statusCode maps domain errors onto HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidCalendarID),
		errors.Is(err, service.ErrNoIntent),
		errors.Is(err, execution.ErrUnsupportedIntent),
		errors.Is(err, ledger.ErrInvalidRecipient),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, calendar.ErrAccessDenied):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, calendar.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrTickInProgress):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnavailable), errors.Is(err, ledger.ErrConfirmationTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(service.ErrInvalidRequest, err)
	}
	return nil
}

type calendarRequest struct {
	CalendarID domain.CalendarID `json:"calendarId"`
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.service.Onboard(r.Context(), req.CalendarID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, map[string]interface{}{
		"calendarId":  c.ID,
		"onboardedAt": c.OnboardedAt,
	})
}

func (s *Server) handleCalendars(w http.ResponseWriter, r *http.Request) {
	cals, err := s.service.Calendars(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ids := make([]domain.CalendarID, 0, len(cals))
	for _, c := range cals {
		ids = append(ids, c.ID)
	}
	writeData(w, ids)
}

func (s *Server) handleCheckEvents(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	stats, err := s.service.CheckNow(r.Context(), req.CalendarID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, map[string]int{
		"fetched":   stats.Fetched,
		"inserted":  stats.Inserted,
		"discarded": stats.Discarded,
	})
}

// upcomingEvent is the JSON view of a provider event.
type upcomingEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func (s *Server) handleUpcomingEvents(w http.ResponseWriter, r *http.Request) {
	id := domain.CalendarID(r.URL.Query().Get("calendarId"))
	max, _ := strconv.Atoi(r.URL.Query().Get("max"))

	events, err := s.service.UpcomingEvents(r.Context(), id, max)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]upcomingEvent, 0, len(events))
	for _, e := range events {
		out = append(out, upcomingEvent(e))
	}
	writeData(w, map[string]interface{}{
		"calendarId": id,
		"events":     out,
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEventRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.service.CreateEvent(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, created)
}

func (s *Server) handleScheduledEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.ScheduledEvents(r.Context(), domain.CalendarID(r.PathValue("calendarId")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, events)
}

func (s *Server) handlePendingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.PendingEvents(r.Context(), domain.CalendarID(r.PathValue("calendarId")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, events)
}

func (s *Server) handleEventStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.service.StatusesFor(r.Context(), domain.CalendarID(r.PathValue("calendarId")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, statuses)
}

func (s *Server) handleEventStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.StatusOf(r.Context(), r.PathValue("eventId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, rec)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.WalletInfo(r.Context(), domain.CalendarID(r.PathValue("calendarId")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, info)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req service.ExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.service.ExecuteNow(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, res)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Calendars int       `json:"calendars"`
	Pending   int       `json:"pending"`
	Executed  int       `json:"executed"`
	Failed    int       `json:"failed"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	resp := StatusResponse{
		Status:    "stopped",
		Uptime:    time.Since(s.startedAt).Truncate(time.Second).String(),
		StartedAt: s.startedAt,
	}
	if running {
		resp.Status = "running"
	}

	cals, err := s.service.Calendars(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp.Calendars = len(cals)
	for _, c := range cals {
		sum, err := s.service.Summary(r.Context(), c.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Pending += sum.Pending
		resp.Executed += sum.Executed
		resp.Failed += sum.Failed
	}

	writeJSON(w, http.StatusOK, resp)
}
