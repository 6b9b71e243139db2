package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
	"grimoire/internal/verb"
)

// VerbHandler serves the verb catalog: listing, preview, execution and undo
type VerbHandler struct {
	kb      *kb.KnowledgeBase
	catalog *verb.Catalog
}

// NewVerbHandler creates a new verb handler
func NewVerbHandler(k *kb.KnowledgeBase, c *verb.Catalog) *VerbHandler {
	return &VerbHandler{kb: k, catalog: c}
}

// VerbSummary is the list form of a catalog entry
type VerbSummary struct {
	Name        string            `json:"name"`
	Category    string            `json:"category,omitempty"`
	Description string            `json:"description,omitempty"`
	Targets     []verb.TargetSpec `json:"targets,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BindRequest names the source and targets for a preview or execution
type BindRequest struct {
	Source  string   `json:"source,omitempty"`
	Targets []string `json:"targets,omitempty"`
}

// ListVerbs returns the catalog. With ?source={id} the listing narrows to
// verbs available to that instance right now, targeting anything known.
func (h *VerbHandler) ListVerbs(w http.ResponseWriter, r *http.Request) {
	defs := h.catalog.Definitions()

	if sourceID := r.URL.Query().Get("source"); sourceID != "" {
		source, ok := h.kb.GetInstance(sourceID)
		if !ok {
			writeError(w, "Not found", fmt.Sprintf("instance %s is not registered", sourceID), http.StatusNotFound)
			return
		}
		available := make(map[string]bool)
		for _, name := range h.catalog.Available(h.kb, source, h.allInstances()) {
			available[name] = true
		}
		kept := make([]*verb.Definition, 0, len(defs))
		for _, def := range defs {
			if available[def.Name] {
				kept = append(kept, def)
			}
		}
		defs = kept
	}

	out := make([]VerbSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, VerbSummary{
			Name:        def.Name,
			Category:    def.Category,
			Description: def.Description,
			Targets:     def.Targets,
			Metadata:    def.Metadata,
		})
	}
	writeJSON(w, out, http.StatusOK)
}

// PreviewVerb binds a verb and describes its effects without applying them
func (h *VerbHandler) PreviewVerb(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	source, targets, ok := h.resolveBind(w, r)
	if !ok {
		return
	}

	effects, err := h.catalog.Preview(h.kb, name, source, targets)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "Failed to bind verb", err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{"verb": name, "effects": effects}, http.StatusOK)
}

// ExecuteVerb binds and applies a verb, returning the execution record
func (h *VerbHandler) ExecuteVerb(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	source, targets, ok := h.resolveBind(w, r)
	if !ok {
		return
	}

	rec, err := h.catalog.Execute(h.kb, name, source, targets)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to execute verb %s: %v", name, err)
		writeError(w, "Failed to execute verb", err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, rec, http.StatusOK)
}

// UndoExecution rolls back a retained execution
func (h *VerbHandler) UndoExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.catalog.Undo(h.kb, id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to undo execution %s: %v", id, err)
		writeError(w, "Failed to undo execution", err.Error(), http.StatusBadRequest)
		return
	}

	if rec, ok := h.kb.GetExecution(id); ok {
		writeJSON(w, rec, http.StatusOK)
		return
	}
	writeJSON(w, map[string]string{"status": "undone", "id": id}, http.StatusOK)
}

// resolveBind decodes the request body and resolves its ids against the
// knowledge base. On failure the error response is already written.
func (h *VerbHandler) resolveBind(w http.ResponseWriter, r *http.Request) (*domain.Instance, []*domain.Instance, bool) {
	var req BindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}

	var source *domain.Instance
	if req.Source != "" {
		in, ok := h.kb.GetInstance(req.Source)
		if !ok {
			writeError(w, "Not found", fmt.Sprintf("source %s is not registered", req.Source), http.StatusNotFound)
			return nil, nil, false
		}
		source = in
	}

	targets := make([]*domain.Instance, 0, len(req.Targets))
	for _, id := range req.Targets {
		in, ok := h.kb.GetInstance(id)
		if !ok {
			writeError(w, "Not found", fmt.Sprintf("target %s is not registered", id), http.StatusNotFound)
			return nil, nil, false
		}
		targets = append(targets, in)
	}

	return source, targets, true
}

func (h *VerbHandler) allInstances() []*domain.Instance {
	all := make([]*domain.Instance, 0, h.kb.InstanceCount())
	for _, def := range h.kb.Definitions() {
		all = append(all, h.kb.GetInstancesByClass(def.Class())...)
	}
	return all
}
