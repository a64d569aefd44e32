package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/export"
	"github.com/couchcryptid/drought-dashboard/internal/poller"
	"github.com/couchcryptid/drought-dashboard/internal/query"
)

type resourceStatus struct {
	Loading   bool       `json:"loading"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func newResourceStatus(loading bool, err error, updated time.Time, fallback string) resourceStatus {
	rs := resourceStatus{Loading: loading, Error: errorText(err, fallback)}
	if !updated.IsZero() {
		rs.UpdatedAt = &updated
	}
	return rs
}

type distribution struct {
	Critical float64 `json:"critical_pct"`
	Warning  float64 `json:"warning_pct"`
	Safe     float64 `json:"safe_pct"`
}

type summaryResponse struct {
	domain.Summary
	Distribution distribution   `json:"distribution"`
	Villages     resourceStatus `json:"villages"`
	Allocation   resourceStatus `json:"allocation"`
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	vs := s.deps.Store.Villages()
	as := s.deps.Store.Allocation()

	sum := domain.SummarizeWithPlan(vs.Villages, as.Plan)
	c, wn, sf := sum.Distribution()
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:      sum,
		Distribution: distribution{Critical: c, Warning: wn, Safe: sf},
		Villages:     newResourceStatus(vs.Loading, vs.Err, vs.UpdatedAt, backend.MsgVillagesUnavailable),
		Allocation:   newResourceStatus(as.Loading, as.Err, as.UpdatedAt, backend.MsgAllocationUnavailable),
	})
}

type villageRow struct {
	domain.Village
	Tier    domain.Tier `json:"tier"`
	Status  string      `json:"status"`
	Tankers int         `json:"tankers"`
}

type villagesResponse struct {
	Rows       []villageRow `json:"rows"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Total      int          `json:"total"`
	// Empty is set when the backend returned no villages at all.
	Empty bool `json:"empty"`
	// NoMatches is set when villages exist but none pass the filters.
	NoMatches bool `json:"no_matches"`
	resourceStatus
}

func (s *Server) handleVillages(w http.ResponseWriter, r *http.Request) {
	view, err := s.viewFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vs := s.deps.Store.Villages()
	plan := s.deps.Store.Allocation().Plan
	page := view.Page(vs.Villages)

	rows := make([]villageRow, len(page.Items))
	for i, v := range page.Items {
		t := v.Tier()
		rows[i] = villageRow{Village: v, Tier: t, Status: t.Label(), Tankers: plan.TankersFor(v.ID)}
	}
	writeJSON(w, http.StatusOK, villagesResponse{
		Rows:           rows,
		Page:           page.Page,
		TotalPages:     page.TotalPages,
		Total:          page.Total,
		Empty:          vs.Loaded() && len(vs.Villages) == 0,
		NoMatches:      len(vs.Villages) > 0 && page.Total == 0,
		resourceStatus: newResourceStatus(vs.Loading, vs.Err, vs.UpdatedAt, backend.MsgVillagesUnavailable),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	view, err := s.viewFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, view.Rows(s.deps.Store.Villages().Villages)); err != nil {
		s.logger.Error("csv export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

// viewFromQuery builds the grid view from search, status, sort, dir, and page.
func (s *Server) viewFromQuery(r *http.Request) (*query.View, error) {
	q := r.URL.Query()

	status, err := query.ParseStatus(q.Get("status"))
	if err != nil {
		return nil, err
	}
	field, err := query.ParseSortField(q.Get("sort"))
	if err != nil {
		return nil, err
	}
	page := 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("page must be an integer")
		}
	}

	view := query.NewView(s.deps.PageSize)
	view.SetSearch(q.Get("search"))
	view.SetStatus(status)
	view.SetSortDirection(field, query.ParseDirection(q.Get("dir")))
	view.SetPage(page)
	return view, nil
}

type allocationResponse struct {
	TotalVillagesInNeed  int                      `json:"total_villages_in_need"`
	TotalTankersAssigned int                      `json:"total_tankers_assigned"`
	TotalLiters          float64                  `json:"total_liters"`
	Allocations          []domain.AllocationEntry `json:"allocations"`
	resourceStatus
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	as := s.deps.Store.Allocation()
	writeJSON(w, http.StatusOK, allocationResponse{
		TotalVillagesInNeed:  as.Plan.TotalVillagesInNeed,
		TotalTankersAssigned: as.Plan.TotalTankersAssigned,
		TotalLiters:          as.Plan.TotalLiters(),
		Allocations:          domain.FilterAllocations(as.Plan.Allocations, r.URL.Query().Get("search")),
		resourceStatus:       newResourceStatus(as.Loading, as.Err, as.UpdatedAt, backend.MsgAllocationUnavailable),
	})
}

func (s *Server) handleIncidents(w http.ResponseWriter, _ *http.Request) {
	vs := s.deps.Store.Villages()
	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": domain.DeriveIncidents(vs.Villages),
		"error":     errorText(vs.Err, backend.MsgVillagesUnavailable),
	})
}

type refreshResponse struct {
	poller.Result
	VillagesError   string `json:"villages_error,omitempty"`
	AllocationError string `json:"allocation_error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// A client hanging up must not record a cancellation on the shared slots.
	ctx := context.WithoutCancel(r.Context())
	if s.opts.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RefreshTimeout)
		defer cancel()
	}
	res := s.deps.Poller.Refresh(ctx)
	resp := refreshResponse{Result: res}
	if res.Villages == poller.Failed {
		resp.VillagesError = errorText(s.deps.Store.Villages().Err, backend.MsgVillagesUnavailable)
	}
	if res.Allocation == poller.Failed {
		resp.AllocationError = errorText(s.deps.Store.Allocation().Err, backend.MsgAllocationUnavailable)
	}
	writeJSON(w, http.StatusOK, resp)
}
