package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/sales-tracker/internal/analytics"
	"github.com/dvloznov/sales-tracker/internal/api/middleware"
	"github.com/dvloznov/sales-tracker/internal/jobs"
	"github.com/dvloznov/sales-tracker/internal/render"
	"github.com/rs/zerolog"
)

// DashboardHandler serves filter options and pivot tables.
type DashboardHandler struct {
	snapshot *Snapshot
	log      zerolog.Logger

	// now is the query time; windows are anchored at the day before it.
	now func() time.Time
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(snapshot *Snapshot, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		snapshot: snapshot,
		log:      log,
		now:      time.Now,
	}
}

// ListFilters handles GET /api/v1/filters
func (h *DashboardHandler) ListFilters(w http.ResponseWriter, r *http.Request) {
	ds, err := h.snapshot.Current()
	if err != nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Dataset not loaded")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ds.Options())
}

// tableResponse is a pivot table with display-rounded cells.
type tableResponse struct {
	Title     string        `json:"title"`
	Dimension string        `json:"dimension"`
	Columns   []string      `json:"columns"`
	Rows      []rowResponse `json:"rows"`
}

type rowResponse struct {
	Label  string  `json:"label"`
	Values []int64 `json:"values"`
}

type dashboardResponse struct {
	NoData          bool            `json:"no_data"`
	Message         string          `json:"message,omitempty"`
	Grouping        string          `json:"grouping"`
	ReferenceDate   string          `json:"reference_date"`
	WindowMonths    int             `json:"window_months,omitempty"`
	Since           string          `json:"since,omitempty"`
	MatchedRows     int             `json:"matched_rows"`
	DatasetLoadedAt time.Time       `json:"dataset_loaded_at"`
	Tables          []tableResponse `json:"tables,omitempty"`
}

// GetDashboard handles GET /api/v1/dashboard
//
// Query parameters: seller, article, supply_source, year and window (3, 6 or
// 12; may repeat, the narrowest applies). An empty match is reported with
// no_data set and a 200 status.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, err := h.snapshot.Current()
	if err != nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Dataset not loaded")
		return
	}

	res := analytics.Query(ds, sel, h.now())
	resp := dashboardResponse{
		NoData:          res.NoData,
		Grouping:        res.Grouping.String(),
		ReferenceDate:   res.Reference.String(),
		WindowMonths:    res.Window,
		MatchedRows:     res.MatchedRows,
		DatasetLoadedAt: ds.LoadedAt(),
	}
	if res.Window > 0 {
		resp.Since = res.Since.String()
	}
	if res.NoData {
		resp.Message = render.NoDataMessage
	} else {
		resp.Tables = []tableResponse{
			newTableResponse("Tabla por Fuente de Suministro", res.BySupplySource),
			newTableResponse("Tabla por Cliente", res.ByClient),
		}
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

func newTableResponse(title string, p *analytics.PivotTable) tableResponse {
	rounded := p.Rounded()
	rows := make([]rowResponse, len(p.Rows))
	for i, row := range p.Rows {
		rows[i] = rowResponse{Label: row.Label, Values: rounded[i]}
	}
	return tableResponse{
		Title:     title,
		Dimension: p.Dimension.String(),
		Columns:   p.Columns,
		Rows:      rows,
	}
}

func parseSelection(r *http.Request) (analytics.Selection, error) {
	query := r.URL.Query()
	sel := analytics.Selection{
		Seller:       query.Get("seller"),
		Article:      query.Get("article"),
		SupplySource: query.Get("supply_source"),
	}

	year, err := analytics.ParseYear(query.Get("year"))
	if err != nil {
		return sel, err
	}
	sel.Year = year

	for _, raw := range query["window"] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			months, err := strconv.Atoi(v)
			if err != nil {
				return sel, errors.New("window must be 3, 6 or 12")
			}
			switch months {
			case 3:
				sel.Trailing3 = true
			case 6:
				sel.Trailing6 = true
			case 12:
				sel.Trailing12 = true
			default:
				return sel, errors.New("window must be 3, 6 or 12")
			}
		}
	}
	return sel, nil
}

// RunsHandler enqueues pipeline runs.
type RunsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(publisher jobs.Publisher, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		publisher: publisher,
		log:       log,
	}
}

// CreateRun handles POST /api/v1/runs
//
// The body is optional: {"source": "api"|"legacy", "start": "YYYY-MM-DD",
// "end": "YYYY-MM-DD"}. A legacy run always imports the configured workbook;
// a request naming its own source_uri is rejected.
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source    jobs.Source `json:"source"`
		Start     string      `json:"start"`
		End       string      `json:"end"`
		SourceURI string      `json:"source_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Source {
	case "", jobs.SourceAPI, jobs.SourceLegacy:
	default:
		middleware.WriteError(w, http.StatusBadRequest, "source must be api or legacy")
		return
	}
	if req.SourceURI != "" {
		h.log.Warn().Str("source_uri", req.SourceURI).Msg("Rejected run with client-supplied workbook")
		middleware.WriteError(w, http.StatusBadRequest, "source_uri cannot be set; the configured legacy workbook is imported")
		return
	}

	job := &jobs.RunPipelineJob{
		Source: req.Source,
		Start:  req.Start,
		End:    req.End,
	}

	if err := h.publisher.PublishRunPipeline(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue pipeline run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue pipeline run")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", string(job.Source)).Msg("Pipeline run enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": string(job.Source),
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: jobs.Source(query.Get("source")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
