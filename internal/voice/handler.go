package voice

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the voice session over HTTP: utterance intake, the
// incomplete-command recovery prompt, and screen route reports.
type Handler struct {
	logger   aqm.Logger
	config   *aqm.Config
	tlm      *telemetry.HTTP
	sessions *SessionRegistry
}

func NewHandler(sessions *SessionRegistry, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		logger:   logger,
		config:   config,
		tlm:      telemetry.NewHTTP(),
		sessions: sessions,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/restaurants/{restaurantID}/voice", func(r chi.Router) {
		r.Post("/utterances", h.SubmitUtterance)
		r.Get("/context", h.GetIncompleteContext)
		r.Delete("/context", h.DismissIncompleteContext)
		r.Patch("/route", h.ReportRoute)
		r.Get("/state", h.GetState)
	})
}

type utteranceRequest struct {
	Text string `json:"text"`
}

type routeReportRequest struct {
	Route string `json:"route"`
}

type stateResponse struct {
	State       string          `json:"state"`
	ActiveRoute string          `json:"active_route,omitempty"`
	Pending     *PendingCommand `json:"pending,omitempty"`
}

func (h *Handler) SubmitUtterance(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitUtterance")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	restaurantID, ok := h.restaurantID(w, r)
	if !ok {
		return
	}

	var req utteranceRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}
	if req.Text == "" {
		log.Debug("empty utterance text")
		aqm.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	session, err := h.sessions.Attach(ctx, restaurantID)
	if err != nil {
		log.Error("cannot attach voice session", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not start voice session")
		return
	}

	if err := session.HandleUtterance(ctx, req.Text); err != nil {
		log.Info("utterance not executed", "restaurant_id", restaurantID.String(), "error", err)
	}

	aqm.RespondSuccess(w, h.stateOf(session))
}

func (h *Handler) GetIncompleteContext(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetIncompleteContext")
	defer finish()

	log := h.log(r)

	restaurantID, ok := h.restaurantID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Attach(r.Context(), restaurantID)
	if err != nil {
		log.Error("cannot attach voice session", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load voice session")
		return
	}

	ic := session.IncompleteContext()
	if ic == nil {
		aqm.RespondError(w, http.StatusNotFound, "No incomplete command pending")
		return
	}

	aqm.RespondSuccess(w, ic)
}

func (h *Handler) DismissIncompleteContext(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DismissIncompleteContext")
	defer finish()

	log := h.log(r)

	restaurantID, ok := h.restaurantID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Attach(r.Context(), restaurantID)
	if err != nil {
		log.Error("cannot attach voice session", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load voice session")
		return
	}

	if err := session.Dismiss(r.Context()); err != nil {
		log.Error("cannot dismiss incomplete command", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not dismiss incomplete command")
		return
	}

	log.Info("incomplete command dismissed", "restaurant_id", restaurantID.String())
	aqm.RespondSuccess(w, h.stateOf(session))
}

func (h *Handler) ReportRoute(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReportRoute")
	defer finish()

	log := h.log(r)

	restaurantID, ok := h.restaurantID(w, r)
	if !ok {
		return
	}

	var req routeReportRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}
	if req.Route == "" {
		aqm.RespondError(w, http.StatusBadRequest, "route is required")
		return
	}

	session, err := h.sessions.Attach(r.Context(), restaurantID)
	if err != nil {
		log.Error("cannot attach voice session", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load voice session")
		return
	}

	session.ReportRoute(r.Context(), req.Route)
	aqm.RespondSuccess(w, h.stateOf(session))
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetState")
	defer finish()

	restaurantID, ok := h.restaurantID(w, r)
	if !ok {
		return
	}

	session, found := h.sessions.Get(restaurantID)
	if !found {
		aqm.RespondError(w, http.StatusNotFound, "No voice session for restaurant")
		return
	}

	aqm.RespondSuccess(w, h.stateOf(session))
}

func (h *Handler) stateOf(session *Dispatcher) stateResponse {
	return stateResponse{
		State:       session.State().Kind.String(),
		ActiveRoute: session.ActiveRoute(),
		Pending:     session.Pending(),
	}
}

func (h *Handler) restaurantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "restaurantID")
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		h.log(r).Debug("invalid restaurant id", "restaurant_id", raw)
		aqm.RespondError(w, http.StatusBadRequest, "invalid restaurant id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, out interface{}, log aqm.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Debug("failed to decode request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}

	return true
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}
