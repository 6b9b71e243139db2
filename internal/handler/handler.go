package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"grimoire/internal/adapter"
	"grimoire/internal/codec"
	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

// FeedRegistry is the slice of the adapter registry the HTTP surface needs
type FeedRegistry interface {
	TriggerSyncAll(ctx context.Context) error
	ListFeeds() []adapter.FeedInfo
}

// KBHandler serves the knowledge base: definitions, instances, queries,
// snapshot interchange and feed triggers
type KBHandler struct {
	kb    *kb.KnowledgeBase
	feeds FeedRegistry
}

// NewKBHandler creates a new knowledge base handler
func NewKBHandler(k *kb.KnowledgeBase) *KBHandler {
	return &KBHandler{kb: k}
}

// SetFeedRegistry attaches the feed registry for sync triggers
func (h *KBHandler) SetFeedRegistry(f FeedRegistry) {
	h.feeds = f
}

// ErrorResponse is the JSON body of every error status
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DefinitionSummary is the list form of a registered class
type DefinitionSummary struct {
	Class       string   `json:"class"`
	Description string   `json:"description,omitempty"`
	Properties  []string `json:"properties"`
	Required    []string `json:"required,omitempty"`
	Instances   int      `json:"instances"`
}

// ListDefinitions returns every registered definition in summary form
func (h *KBHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs := h.kb.Definitions()
	out := make([]DefinitionSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, DefinitionSummary{
			Class:       def.Class(),
			Description: def.Description(),
			Properties:  def.PropertyNames(),
			Required:    def.Required(),
			Instances:   len(h.kb.GetInstancesByClass(def.Class())),
		})
	}
	writeJSON(w, out, http.StatusOK)
}

// GetDefinition returns one definition with its domain declarations
func (h *KBHandler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	class := r.PathValue("class")
	def, ok := h.kb.GetDefinition(class)
	if !ok {
		writeError(w, "Not found", fmt.Sprintf("class %s is not registered", class), http.StatusNotFound)
		return
	}
	writeJSON(w, codec.SnapshotDefinition(def), http.StatusOK)
}

// ListInstances returns instances in canonical form, optionally narrowed by
// class and by property/op/value filter triplets carried as repeated query
// parameters
func (h *KBHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	class := q.Get("class")

	conds, err := tripletConditions(q)
	if err != nil {
		writeError(w, "Invalid filter", err.Error(), http.StatusBadRequest)
		return
	}
	if class == "" && len(conds) > 0 {
		writeError(w, "Invalid filter", "property filters require a class", http.StatusBadRequest)
		return
	}

	out := make([]domain.Canonical, 0)
	if class != "" {
		matched := h.kb.Query(class, conds...)
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID() < matched[j].ID() })
		for _, in := range matched {
			out = append(out, in.CanonicalForm())
		}
	} else {
		for _, def := range h.kb.Definitions() {
			instances := h.kb.GetInstancesByClass(def.Class())
			sort.Slice(instances, func(i, j int) bool { return instances[i].ID() < instances[j].ID() })
			for _, in := range instances {
				out = append(out, in.CanonicalForm())
			}
		}
	}

	writeJSON(w, out, http.StatusOK)
}

// GetInstance returns one instance in canonical form
func (h *KBHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, ok := h.kb.GetInstance(id)
	if !ok {
		writeError(w, "Not found", fmt.Sprintf("instance %s is not registered", id), http.StatusNotFound)
		return
	}
	writeJSON(w, in.CanonicalForm(), http.StatusOK)
}

// RemoveInstance archives an instance's final state and unindexes it
func (h *KBHandler) RemoveInstance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.kb.RemoveInstance(id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to remove instance %s: %v", id, err)
		writeError(w, "Failed to remove instance", err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// QueryRequest is the body of POST /api/query
type QueryRequest struct {
	Class      string             `json:"class"`
	Conditions []domain.Condition `json:"conditions,omitempty"`
}

// Query returns the instances of a class satisfying every condition
func (h *KBHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Class == "" {
		writeError(w, "Class required", "query needs a class", http.StatusBadRequest)
		return
	}
	if _, ok := h.kb.GetDefinition(req.Class); !ok {
		writeError(w, "Not found", fmt.Sprintf("class %s is not registered", req.Class), http.StatusNotFound)
		return
	}
	for _, c := range req.Conditions {
		if c.Property == "" {
			writeError(w, "Invalid condition", "condition has no property", http.StatusBadRequest)
			return
		}
		if !c.Op.Valid() {
			writeError(w, "Invalid condition", fmt.Sprintf("unknown condition op %q", c.Op), http.StatusBadRequest)
			return
		}
	}

	matched := h.kb.Query(req.Class, req.Conditions...)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID() < matched[j].ID() })
	out := make([]domain.Canonical, 0, len(matched))
	for _, in := range matched {
		out = append(out, in.CanonicalForm())
	}

	writeJSON(w, map[string]any{"count": len(out), "matches": out}, http.StatusOK)
}

// ListFeeds returns information about registered feeds
func (h *KBHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	if h.feeds == nil {
		writeError(w, "Feeds not configured", "no feed registry is attached", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.feeds.ListFeeds(), http.StatusOK)
}

// TriggerFeedSync drains every enabled feed in the background
func (h *KBHandler) TriggerFeedSync(w http.ResponseWriter, r *http.Request) {
	if h.feeds == nil {
		writeError(w, "Feeds not configured", "no feed registry is attached", http.StatusServiceUnavailable)
		return
	}

	// Run the sync in background and return immediately
	go func() {
		if err := h.feeds.TriggerSyncAll(context.Background()); err != nil {
			log.Printf("Feed sync failed: %v", err)
		}
	}()

	writeJSON(w, map[string]string{"status": "sync_triggered"}, http.StatusAccepted)
}

// ExportJSON streams the knowledge base snapshot as JSON
func (h *KBHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=snapshot.json")

	if err := codec.NewJSONCodec().Export(codec.Capture(h.kb), w); err != nil {
		log.Printf("Failed to export JSON: %v", err)
		// Can't write error response as we already set headers
	}
}

// ExportYAML streams the knowledge base snapshot as YAML
func (h *KBHandler) ExportYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", "attachment; filename=snapshot.yaml")

	if err := codec.NewYAMLCodec().Export(codec.Capture(h.kb), w); err != nil {
		log.Printf("Failed to export YAML: %v", err)
	}
}

// ExportDOT streams the instance graph as Graphviz DOT
func (h *KBHandler) ExportDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Header().Set("Content-Disposition", "attachment; filename=snapshot.dot")

	if err := codec.NewDOTCodec().Export(codec.Capture(h.kb), w); err != nil {
		log.Printf("Failed to export DOT: %v", err)
	}
}

// ImportJSON applies a JSON snapshot to the knowledge base
func (h *KBHandler) ImportJSON(w http.ResponseWriter, r *http.Request) {
	h.importSnapshot(w, r, codec.NewJSONCodec())
}

// ImportYAML applies a YAML snapshot to the knowledge base
func (h *KBHandler) ImportYAML(w http.ResponseWriter, r *http.Request) {
	h.importSnapshot(w, r, codec.NewYAMLCodec())
}

func (h *KBHandler) importSnapshot(w http.ResponseWriter, r *http.Request, imp codec.Importer) {
	strategy := codec.Strategy(r.URL.Query().Get("strategy"))
	if strategy == "" {
		strategy = codec.StrategyMerge
	}

	snap, err := imp.Parse(r.Body)
	if err != nil {
		writeError(w, "Invalid snapshot", err.Error(), http.StatusBadRequest)
		return
	}

	if err := codec.Apply(h.kb, snap, strategy); err != nil {
		log.Printf("Failed to import %s snapshot: %v", imp.Format(), err)
		writeError(w, "Failed to import snapshot", err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"status":      "imported",
		"strategy":    string(strategy),
		"definitions": len(snap.Definitions),
		"instances":   len(snap.Instances),
	}, http.StatusOK)
}

// tripletConditions zips repeated property/op/value query parameters into
// conditions. Values are coerced so numeric filters see numbers.
func tripletConditions(q url.Values) ([]domain.Condition, error) {
	props, ops, values := q["property"], q["op"], q["value"]
	if len(props) == 0 && len(ops) == 0 && len(values) == 0 {
		return nil, nil
	}
	if len(ops) != len(props) || len(values) != len(props) {
		return nil, fmt.Errorf("property, op and value must repeat together")
	}

	conds := make([]domain.Condition, 0, len(props))
	for i := range props {
		if props[i] == "" {
			return nil, fmt.Errorf("filter %d has no property", i)
		}
		op := domain.Op(ops[i])
		if !op.Valid() {
			return nil, fmt.Errorf("unknown condition op %q", ops[i])
		}
		conds = append(conds, domain.Condition{Property: props[i], Op: op, Value: coerceScalar(values[i])})
	}
	return conds, nil
}

// coerceScalar maps a query string onto the types property values use
func coerceScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
