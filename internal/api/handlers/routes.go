package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/sales-tracker/internal/api/middleware"
)

// NewMux registers the dashboard API routes.
func NewMux(dashboard *DashboardHandler, runs *RunsHandler, jobsHandler *JobsHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/filters", allow(http.MethodGet, dashboard.ListFilters))
	mux.HandleFunc("/api/v1/dashboard", allow(http.MethodGet, dashboard.GetDashboard))

	mux.HandleFunc("/api/v1/runs", allow(http.MethodPost, runs.CreateRun))
	mux.HandleFunc("/api/v1/jobs", allow(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/v1/jobs/{id}", allow(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.GetJob(w, r, r.PathValue("id"))
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	return mux
}

// allow restricts h to one method and answers anything else with a JSON 405.
func allow(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
