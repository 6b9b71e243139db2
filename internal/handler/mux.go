package handler

import "net/http"

// NewMux builds the API route table. The events handler (the SSE hub) is
// passed in so this package stays ignorant of its implementation.
func NewMux(kbh *KBHandler, vh *VerbHandler, jh *JournalHandler, events http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Definition endpoints
	mux.HandleFunc("GET /api/definitions", kbh.ListDefinitions)
	mux.HandleFunc("GET /api/definitions/{class}", kbh.GetDefinition)

	// Instance endpoints
	mux.HandleFunc("GET /api/instances", kbh.ListInstances)
	mux.HandleFunc("GET /api/instances/{id}", kbh.GetInstance)
	mux.HandleFunc("DELETE /api/instances/{id}", kbh.RemoveInstance)
	mux.HandleFunc("POST /api/query", kbh.Query)

	// Verb endpoints
	mux.HandleFunc("GET /api/verbs", vh.ListVerbs)
	mux.HandleFunc("POST /api/verbs/{name}/preview", vh.PreviewVerb)
	mux.HandleFunc("POST /api/verbs/{name}/execute", vh.ExecuteVerb)
	mux.HandleFunc("POST /api/executions/{id}/undo", vh.UndoExecution)

	// Journal read-backs
	mux.HandleFunc("GET /api/executions", jh.ListExecutions)
	mux.HandleFunc("GET /api/events", jh.ListEvents)
	mux.HandleFunc("GET /api/divergences", jh.ListDivergences)
	mux.HandleFunc("GET /api/archive", jh.ListArchived)

	// Feed endpoints
	mux.HandleFunc("GET /api/feeds", kbh.ListFeeds)
	mux.HandleFunc("POST /api/feeds/sync", kbh.TriggerFeedSync)

	// Snapshot interchange
	mux.HandleFunc("GET /api/snapshot.json", kbh.ExportJSON)
	mux.HandleFunc("GET /api/snapshot.yaml", kbh.ExportYAML)
	mux.HandleFunc("GET /api/snapshot.dot", kbh.ExportDOT)
	mux.HandleFunc("POST /api/import/json", kbh.ImportJSON)
	mux.HandleFunc("POST /api/import/yaml", kbh.ImportYAML)

	// SSE change stream
	if events != nil {
		mux.Handle("GET /events", events)
	}

	return mux
}
