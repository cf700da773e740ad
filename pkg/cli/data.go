package cli

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/fairlens/fairlens/pkg/data"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryParamInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return def
	}
	return i
}

func datasetsAPIHandler(store *data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		list, err := store.ListDatasets()
		if err != nil {
			slog.Error("failed to list datasets", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list datasets")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func breakdownAPIHandler(store *data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		stats, err := store.GroupBreakdown(name)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				writeError(w, http.StatusNotFound, "dataset not found")
				return
			}
			slog.Error("failed to get breakdown", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get breakdown")
			return
		}
		writeJSON(w, http.StatusOK, groupSummaries(stats))
	}
}

func runsAPIHandler(store *data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		limit := queryParamInt(r, "limit", runsQueryLimitDefault)
		list, err := store.ListRuns(name, limit)
		if err != nil {
			slog.Error("failed to list runs", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// AuditRequest is the POST body for on-demand audits from the
// dashboard.
type AuditRequest struct {
	Name      string        `json:"name"`
	Reference string        `json:"reference,omitempty"`
	Policy    *audit.Policy `json:"policy,omitempty"`
}

func auditAPIHandler(store *data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		recs, err := store.Records(req.Name)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				writeError(w, http.StatusNotFound, "dataset not found")
				return
			}
			slog.Error("failed to load records", "name", req.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load records")
			return
		}

		stats, err := audit.ComputeConcurrent(recs, runtime.NumCPU())
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		ref := req.Reference
		if ref == "" {
			ref = largestGroup(stats)
		}

		pol := audit.DefaultPolicy()
		if req.Policy != nil {
			pol = *req.Policy
		}

		rep, err := audit.Evaluate(stats, ref, pol)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		run, err := store.SaveRun(req.Name, rep)
		if err != nil {
			slog.Error("failed to record run", "name", req.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to record run")
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}
