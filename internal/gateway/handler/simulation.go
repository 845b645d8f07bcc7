package handler

import (
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"labsite/internal/gateway/middleware"
	"labsite/internal/gateway/visitor"
	"labsite/internal/simulation"
)

const maxSubmitBodyBytes = 64 << 10

// Controllers resolves the simulation controller of a site session.
type Controllers interface {
	Get(sessionID string) (*simulation.Controller, error)
	Peek(sessionID string) (*simulation.Controller, bool)
}

// FrameArchive looks up the archived final frame of a task.
type FrameArchive interface {
	URL(taskID string) (string, bool)
}

type SimulationHandler struct {
	controllers Controllers
	archive     FrameArchive
}

func NewSimulationHandler(controllers Controllers, archive FrameArchive) *SimulationHandler {
	return &SimulationHandler{controllers: controllers, archive: archive}
}

type simulationView struct {
	simulation.Snapshot
	FrameURL   string `json:"frameUrl,omitempty"`
	ArchiveURL string `json:"archiveUrl,omitempty"`
}

func (h *SimulationHandler) view(snap simulation.Snapshot) simulationView {
	v := simulationView{Snapshot: snap}
	if snap.LatestFrame != "" {
		v.FrameURL = "/api/simulations/current/frame.png"
	}
	if h.archive != nil && snap.TaskID != "" {
		if u, ok := h.archive.URL(snap.TaskID); ok {
			v.ArchiveURL = u
		}
	}
	return v
}

// Submit accepts a JSON job description or a submitted form and starts the
// run on the session's controller. The response is sent once the stream is
// open; frames are then polled through Current.
func (h *SimulationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := visitor.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusBadRequest, "visitor identity missing")
		return
	}
	req, err := decodeSubmission(w, r)
	if err != nil {
		writeSubmitError(w, r, simulation.Snapshot{Status: simulation.StatusFailed}, err)
		return
	}
	ctrl, err := h.controllers.Get(id.SessionID)
	if err != nil {
		log.Printf("simulation handler: controller unavailable session=%s err=%v", id.SessionID, err)
		writeError(w, r, http.StatusServiceUnavailable, "simulation service unavailable")
		return
	}
	snap, err := ctrl.Submit(r.Context(), req)
	if err != nil {
		writeSubmitError(w, r, snap, err)
		return
	}
	log.Printf("simulation handler: submitted session=%s type=%s task_id=%s", id.SessionID, req.Type(), snap.TaskID)
	writeJSON(w, http.StatusAccepted, h.view(snap))
}

func decodeSubmission(w http.ResponseWriter, r *http.Request) (simulation.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxSubmitBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, &simulation.ValidationError{Field: "body", Message: "invalid form body"}
		}
		return simulation.FromForm(r.PostForm.Get("simulation_type"), r.PostForm)
	default:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, &simulation.ValidationError{Field: "body", Message: "request body too large"}
		}
		if len(strings.TrimSpace(string(raw))) == 0 {
			return nil, &simulation.ValidationError{Field: "body", Message: "request body is required"}
		}
		return simulation.DecodeRequest(raw)
	}
}

type submitErrorBody struct {
	errorBody
	Simulation simulationView `json:"simulation"`
}

func writeSubmitError(w http.ResponseWriter, r *http.Request, snap simulation.Snapshot, err error) {
	body := submitErrorBody{
		errorBody:  errorBody{Error: err.Error(), RequestID: middleware.GetRequestID(r.Context())},
		Simulation: simulationView{Snapshot: snap},
	}
	status := http.StatusBadGateway

	var verr *simulation.ValidationError
	var serr *simulation.SubmitError
	var strErr *simulation.StreamError
	switch {
	case errors.As(err, &verr):
		body.Field = verr.Field
		status = http.StatusUnprocessableEntity
		if verr.Field == "body" {
			status = http.StatusBadRequest
		}
	case errors.As(err, &serr), errors.As(err, &strErr):
		log.Printf("simulation handler: run failed err=%v", err)
	case errors.Is(err, simulation.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		log.Printf("simulation handler: unexpected submit error err=%v", err)
	}
	writeJSON(w, status, body)
}

// Current reports the session's simulation state; sessions that never
// submitted are idle.
func (h *SimulationHandler) Current(w http.ResponseWriter, r *http.Request) {
	id, ok := visitor.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusBadRequest, "visitor identity missing")
		return
	}
	snap := simulation.Snapshot{Status: simulation.StatusIdle}
	if ctrl, ok := h.controllers.Peek(id.SessionID); ok {
		snap = ctrl.Snapshot()
	}
	writeJSON(w, http.StatusOK, h.view(snap))
}

func (h *SimulationHandler) Frame(w http.ResponseWriter, r *http.Request) {
	id, ok := visitor.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusBadRequest, "visitor identity missing")
		return
	}
	ctrl, ok := h.controllers.Peek(id.SessionID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "no simulation frame")
		return
	}
	snap := ctrl.Snapshot()
	if snap.LatestFrame == "" {
		writeError(w, r, http.StatusNotFound, "no simulation frame")
		return
	}
	png, err := simulation.DecodeFrame(snap.LatestFrame)
	if err != nil {
		log.Printf("simulation handler: bad frame task_id=%s err=%v", snap.TaskID, err)
		writeError(w, r, http.StatusBadGateway, "simulation frame is not valid base64")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
