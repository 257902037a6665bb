package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"gridvend/internal/core"
	"gridvend/internal/export"
	"gridvend/internal/logging"
	"gridvend/internal/store"
	"gridvend/internal/validate"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImportCustomers ingests a customer sheet. Multipart form fields:
// file, mini_grid_id, cluster_id.
func (s *Server) handleImportCustomers(w http.ResponseWriter, r *http.Request) {
	fileName, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	miniGridID, err1 := strconv.ParseInt(r.FormValue("mini_grid_id"), 10, 64)
	clusterID, err2 := strconv.ParseInt(r.FormValue("cluster_id"), 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, r, http.StatusBadRequest, "mini_grid_id and cluster_id are required integers")
		return
	}

	report, err := s.service.ImportCustomers(r.Context(), fileName, data, miniGridID, clusterID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	logging.FromContext(r.Context()).Info("customer import accepted",
		"file", fileName, "batch_id", report.BatchID, "total_rows", report.TotalRows)
	writeJSON(w, r, http.StatusOK, report)
}

// handleImportMeters ingests a vending-records sheet. Multipart form field:
// file.
func (s *Server) handleImportMeters(w http.ResponseWriter, r *http.Request) {
	fileName, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	report, err := s.service.ImportMeters(r.Context(), fileName, data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	logging.FromContext(r.Context()).Info("meter import accepted",
		"file", fileName, "batch_id", report.BatchID, "total_rows", report.TotalRows)
	writeJSON(w, r, http.StatusOK, report)
}

// readUpload pulls the multipart "file" field, bounded by the configured
// maximum size. On failure it writes the error response itself.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to read file")
		return "", nil, false
	}
	return header.Filename, data, true
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := int32(50)
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, r, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = int32(n)
	}
	var offset int32
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		offset = int32(n)
	}

	orders, err := s.service.ListOrders(r.Context(), store.ListOrdersParams{
		Type:   q.Get("type"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if orders == nil {
		orders = []store.Order{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": orders})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	order, err := s.service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, r, http.StatusNotFound, fmt.Sprintf("order %d not found", id))
			return
		}
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": order})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in core.OrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := s.service.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, errStatus(err), err.Error())
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"data": order})
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	var in core.OrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := s.service.UpdateOrder(r.Context(), id, in)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, errStatus(err), err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": order})
}

// handleOrderAnalytics returns per-type order counts and revenue, optionally
// bounded by from/to purchase dates.
func (s *Server) handleOrderAnalytics(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryWindow(w, r)
	if !ok {
		return
	}

	stats, err := s.service.OrderAnalytics(r.Context(), from, to)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if stats == nil {
		stats = []store.OrderTypeStat{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": stats})
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteOrder(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignMeter(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	var in core.AssignMeterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := s.service.AssignExternalMeter(r.Context(), id, in)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, errStatus(err), err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": order})
}

// handleExportVendingRecords streams the VendingRecords workbook of pending
// meter orders, or their JSON form with debug=1. from/to bound the purchase
// window as YYYY-MM-DD dates.
func (s *Server) handleExportVendingRecords(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryWindow(w, r)
	if !ok {
		return
	}

	rows, err := s.service.PendingVendingRows(r.Context(), from, to)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("debug") == "1" {
		writeJSON(w, r, http.StatusOK, map[string]any{"data": export.Records(rows)})
		return
	}

	f, err := export.Workbook(rows)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	if err := f.Write(w); err != nil {
		logging.FromContext(r.Context()).Error("workbook write failed", "error", err)
	}
}

// queryWindow parses the optional from/to query parameters as YYYY-MM-DD
// dates. The window applies when both are present; to covers its whole day.
// On a malformed date it writes the error response and reports !ok.
func queryWindow(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	q := r.URL.Query()
	f, t := q.Get("from"), q.Get("to")
	if f == "" || t == "" {
		return time.Time{}, time.Time{}, true
	}

	from, err1 := time.Parse("2006-01-02", f)
	to, err2 := time.Parse("2006-01-02", t)
	if err1 != nil || err2 != nil {
		writeError(w, r, http.StatusBadRequest, "from/to must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	to = to.Add(24*time.Hour - time.Nanosecond) // end of day
	return from, to, true
}

func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// errStatus maps service errors to HTTP codes: validation failures are 422,
// everything else 400.
func errStatus(err error) int {
	var fieldErrs validate.FieldErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}
