package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/damsync/internal/export"
	"github.com/sells-group/damsync/internal/model"
)

// syncResponse reports one day of a measurement sync.
type syncResponse struct {
	RunID        string              `json:"run_id"`
	Date         string              `json:"date"`
	SyncCount    int                 `json:"sync_count"`
	Measurements []model.Measurement `json:"measurements"`
	Messages     []string            `json:"messages"`
	Error        string              `json:"error,omitempty"`
}

func newSyncResponse(out model.SyncOutcome) syncResponse {
	return syncResponse{
		RunID:        out.RunID,
		Date:         out.Date,
		SyncCount:    len(out.Written),
		Measurements: out.Written,
		Messages:     out.Skipped,
		Error:        out.Error,
	}
}

// catalogSyncResponse reports a catalog sync. SyncCount counts created dams.
type catalogSyncResponse struct {
	RunID     string      `json:"run_id"`
	Date      string      `json:"date"`
	SyncCount int         `json:"sync_count"`
	Created   []model.Dam `json:"created"`
	Updated   []model.Dam `json:"updated"`
	Messages  []string    `json:"messages"`
}

// measurementQuery selects measurements by dam, by dates, or both.
type measurementQuery struct {
	SIHKey    string `json:"sihKey"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// infoQuery selects dam info by key or state, optionally bounded by dates.
type infoQuery struct {
	SIHKey    string `json:"sihKey"`
	State     string `json:"state"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListDams(w http.ResponseWriter, r *http.Request) {
	dams, err := s.query.Dams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(dams))
}

func (s *Server) handleGetDam(w http.ResponseWriter, r *http.Request) {
	dam, err := s.query.Dam(r.Context(), chi.URLParam(r, "sihKey"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dam)
}

func (s *Server) handleDamsByState(w http.ResponseWriter, r *http.Request) {
	dams, err := s.query.DamsByState(r.Context(), chi.URLParam(r, "state"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dams)
}

func (s *Server) handleDamsGeoJSON(w http.ResponseWriter, r *http.Request) {
	dams, err := s.query.Dams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := export.WriteCatalogGeoJSON(w, dams); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handleSyncCatalog(w http.ResponseWriter, r *http.Request) {
	out, err := s.syncer.SyncCatalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogSyncResponse{
		RunID:     out.RunID,
		Date:      out.Date,
		SyncCount: len(out.Created),
		Created:   out.Created,
		Updated:   out.Updated,
		Messages:  out.Skipped,
	})
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	ms, err := s.query.Measurements(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ms))
}

func (s *Server) handleQueryMeasurements(w http.ResponseWriter, r *http.Request) {
	var q measurementQuery
	if err := decodeBody(r, &q); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	key := strings.TrimSpace(q.SIHKey)
	start, end := optionalDate(q.StartDate), optionalDate(q.EndDate)

	var (
		ms  []model.Measurement
		err error
	)
	switch {
	case key != "" && start != "":
		ms, err = s.query.MeasurementsByDamAndDates(r.Context(), key, start, end)
	case start != "":
		ms, err = s.query.MeasurementsByDates(r.Context(), start, end)
	case key != "" && end == "":
		ms, err = s.query.MeasurementsByDam(r.Context(), key)
	default:
		s.badRequest(w, r, "sihKey or startDate is required")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ms))
}

func (s *Server) handleSyncToday(w http.ResponseWriter, r *http.Request) {
	s.writeSyncDay(w, s.syncer.SyncToday(r.Context()))
}

func (s *Server) handleSyncDate(w http.ResponseWriter, r *http.Request) {
	out, err := s.syncer.SyncDate(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSyncDay(w, out)
}

// writeSyncDay answers with the day's outcome. A failed day keeps its
// partial results in the body and maps its error to the status code.
func (s *Server) writeSyncDay(w http.ResponseWriter, out model.SyncOutcome) {
	status := http.StatusOK
	if out.Failed() {
		status = statusFor(out.Err)
	}
	writeJSON(w, status, newSyncResponse(out))
}

func (s *Server) handleSyncDates(w http.ResponseWriter, r *http.Request) {
	var q measurementQuery
	if err := decodeBody(r, &q); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}

	outcomes, err := s.syncer.SyncRange(r.Context(), q.StartDate, optionalDate(q.EndDate))
	if err != nil && len(outcomes) == 0 {
		s.writeError(w, r, err)
		return
	}

	resp := make([]syncResponse, 0, len(outcomes))
	for _, out := range outcomes {
		resp = append(resp, newSyncResponse(out))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInfoAll(w http.ResponseWriter, r *http.Request) {
	infos, err := s.query.InfoAll(r.Context(), "", "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleInfoByKey(w http.ResponseWriter, r *http.Request) {
	var q infoQuery
	if err := decodeBody(r, &q); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(q.SIHKey) == "" {
		s.badRequest(w, r, "sihKey is required")
		return
	}

	info, err := s.query.Info(r.Context(), strings.TrimSpace(q.SIHKey), optionalDate(q.StartDate), optionalDate(q.EndDate))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleInfoByState(w http.ResponseWriter, r *http.Request) {
	var q infoQuery
	if err := decodeBody(r, &q); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(q.State) == "" {
		s.badRequest(w, r, "state is required")
		return
	}

	infos, err := s.query.InfoByState(r.Context(), q.State, optionalDate(q.StartDate), optionalDate(q.EndDate))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleInfoByDates(w http.ResponseWriter, r *http.Request) {
	var q infoQuery
	if err := decodeBody(r, &q); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	start := optionalDate(q.StartDate)
	if start == "" {
		s.badRequest(w, r, "startDate is required")
		return
	}

	infos, err := s.query.InfoAll(r.Context(), start, optionalDate(q.EndDate))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
