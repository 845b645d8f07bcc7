package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"labsite/internal/flagstore"
	"labsite/internal/gateway/visitor"
	"labsite/internal/popup"
)

// PopupHandler serves the popups a visitor should see and records their
// dismissals. Durable flags are scoped by visitor id, session flags by
// session id.
type PopupHandler struct {
	store    popup.Store
	durable  flagstore.KV
	session  flagstore.KV
	gateOpts []popup.GateOption
}

func NewPopupHandler(store popup.Store, durable, session flagstore.KV, opts ...popup.GateOption) *PopupHandler {
	return &PopupHandler{store: store, durable: durable, session: session, gateOpts: opts}
}

func (h *PopupHandler) gate(r *http.Request) (*popup.Gate, bool) {
	id, ok := visitor.FromContext(r.Context())
	if !ok {
		return nil, false
	}
	return popup.NewGate(
		flagstore.Scoped(h.durable, id.VisitorID),
		flagstore.Scoped(h.session, id.SessionID),
		h.gateOpts...,
	), true
}

func (h *PopupHandler) List(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gate(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "visitor identity missing")
		return
	}
	records, err := h.store.ListActive(r.Context())
	if err != nil {
		log.Printf("popup handler: list failed err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load popups")
		return
	}
	visible, err := g.Visible(r.Context(), records)
	if err != nil {
		log.Printf("popup handler: gate failed err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to read popup state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"popups": visible})
}

func (h *PopupHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gate(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "visitor identity missing")
		return
	}
	id, ok := popupID(w, r)
	if !ok {
		return
	}
	var in struct {
		Persist bool `json:"persist"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := g.Dismiss(r.Context(), id, in.Persist); err != nil {
		log.Printf("popup handler: dismiss failed popup=%d persist=%t err=%v", id, in.Persist, err)
		writeError(w, r, http.StatusInternalServerError, "failed to save popup state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "persist": in.Persist})
}

// Follow dismisses the popup for this session and returns the link the
// browser should open.
func (h *PopupHandler) Follow(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gate(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "visitor identity missing")
		return
	}
	id, ok := popupID(w, r)
	if !ok {
		return
	}
	rec, err := h.store.Get(r.Context(), id)
	if errors.Is(err, popup.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "popup not found")
		return
	}
	if err != nil {
		log.Printf("popup handler: get failed popup=%d err=%v", id, err)
		writeError(w, r, http.StatusInternalServerError, "failed to load popup")
		return
	}
	var link string
	err = g.DismissViaLink(r.Context(), rec, func(url string) error {
		link = url
		return nil
	})
	if err != nil {
		log.Printf("popup handler: follow failed popup=%d err=%v", id, err)
		writeError(w, r, http.StatusInternalServerError, "failed to save popup state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "linkUrl": link})
}

func popupID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid popup id")
		return 0, false
	}
	return id, true
}
