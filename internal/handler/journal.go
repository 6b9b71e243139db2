package handler

import (
	"log"
	"net/http"
	"strconv"

	"grimoire/internal/repository"
)

// defaultLogLimit caps journal read-backs unless ?limit= narrows them
const defaultLogLimit = 100

// JournalHandler serves the persistent logs: verb executions, ingested host
// engine events, divergences and archived instances
type JournalHandler struct {
	journal repository.Journal
}

// NewJournalHandler creates a new journal handler. A nil journal is
// tolerated; every endpoint then reports 503.
func NewJournalHandler(j repository.Journal) *JournalHandler {
	return &JournalHandler{journal: j}
}

// ListExecutions returns recorded verb executions, newest first, optionally
// narrowed to one verb with ?verb=
func (h *JournalHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	execs, err := h.journal.Executions(r.Context(), r.URL.Query().Get("verb"), limitParam(r))
	if err != nil {
		log.Printf("Failed to list executions: %v", err)
		writeError(w, "Failed to list executions", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, execs, http.StatusOK)
}

// ListEvents returns ingested host engine events, newest first
func (h *JournalHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	events, err := h.journal.RecentEvents(r.Context(), limitParam(r))
	if err != nil {
		log.Printf("Failed to list events: %v", err)
		writeError(w, "Failed to list events", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, events, http.StatusOK)
}

// ListDivergences returns recorded divergences, newest first
func (h *JournalHandler) ListDivergences(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	divs, err := h.journal.Divergences(r.Context(), limitParam(r))
	if err != nil {
		log.Printf("Failed to list divergences: %v", err)
		writeError(w, "Failed to list divergences", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, divs, http.StatusOK)
}

// ListArchived returns the final canonical forms of removed instances,
// newest first, optionally narrowed by ?class=
func (h *JournalHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	archived, err := h.journal.ArchivedInstances(r.Context(), r.URL.Query().Get("class"), limitParam(r))
	if err != nil {
		log.Printf("Failed to list archived instances: %v", err)
		writeError(w, "Failed to list archived instances", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, archived, http.StatusOK)
}

func (h *JournalHandler) ready(w http.ResponseWriter) bool {
	if h.journal == nil {
		writeError(w, "Journal not configured", "no journal is attached", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func limitParam(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultLogLimit
}
