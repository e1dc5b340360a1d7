package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/domain"
	"github.com/threadline/reconciler/internal/ingestion"
	"github.com/threadline/reconciler/internal/reconcile"
	"github.com/threadline/reconciler/internal/report"
	"github.com/threadline/reconciler/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	orderRepo    *repository.OrderRepo
	shipmentRepo *repository.ShipmentRepo
	matchRepo    *repository.MatchRepo
	importRepo   *repository.ImportRepo
	ingestionSvc *ingestion.Service
	reconcileSvc *reconcile.Service
	log          zerolog.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// readUpload pulls the file and customer fields out of a multipart
// import request.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, filename, customer string, ok bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return nil, "", "", false
	}

	customer = r.FormValue("customer")
	if customer == "" {
		h.writeError(w, http.StatusBadRequest, "customer is required")
		return nil, "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return nil, "", "", false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return nil, "", "", false
	}
	return data, header.Filename, customer, true
}

// --- imports ---

func (h *Handlers) ImportOrders(w http.ResponseWriter, r *http.Request) {
	data, filename, customer, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	result, err := h.ingestionSvc.ImportOrders(data, filename, customer)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ImportShipments(w http.ResponseWriter, r *http.Request) {
	data, filename, customer, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	result, err := h.ingestionSvc.ImportShipments(data, filename, customer)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ListImports(w http.ResponseWriter, r *http.Request) {
	batches, err := h.importRepo.List(r.URL.Query().Get("customer"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"imports": batches})
}

// --- reconcile ---

type reconcileRequest struct {
	Customer string `json:"customer"`
	PONumber string `json:"po_number"`
}

func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Customer == "" {
		h.writeError(w, http.StatusBadRequest, "customer is required")
		return
	}

	res, err := h.reconcileSvc.Run(r.Context(), req.Customer, req.PONumber)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":            res.RunID,
		"customer":          res.Customer,
		"po_number":         res.PONumber,
		"order_count":       res.OrderCount,
		"shipment_count":    res.ShipmentCount,
		"links":             len(res.Links),
		"matched_shipments": res.MatchedShipments(),
		"unmatched":         len(res.Unmatched),
		"layers":            res.Layers,
	})
}

// --- runs ---

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	runs, err := h.matchRepo.ListRuns(q.Get("customer"), q.Get("po"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.matchRepo.GetRun(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) ExportRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.matchRepo.GetRun(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "run-"+id+".xlsx"))
	if err := report.WriteRun(w, res); err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("export failed")
	}
}

// --- matches ---

func (h *Handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.LinkFilter{
		Customer:     q.Get("customer"),
		PONumber:     q.Get("po"),
		ReviewStatus: q.Get("review"),
		Page:         parseIntDefault(q.Get("page"), 1),
		Limit:        parseIntDefault(q.Get("limit"), 50),
	}
	if ls := q.Get("layer"); ls != "" {
		layer, err := strconv.Atoi(ls)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "layer must be an integer")
			return
		}
		filter.Layer = &layer
	}

	links, total, err := h.matchRepo.ListLinks(filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"matches": links,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

func (h *Handlers) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	links, err := h.matchRepo.ReviewQueue()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"queue": links,
		"total": len(links),
	})
}

type reviewRequest struct {
	Note string `json:"note"`
}

func (h *Handlers) ApproveMatch(w http.ResponseWriter, r *http.Request) {
	h.reviewMatch(w, r, domain.ReviewApproved)
}

func (h *Handlers) RejectMatch(w http.ResponseWriter, r *http.Request) {
	h.reviewMatch(w, r, domain.ReviewRejected)
}

func (h *Handlers) reviewMatch(w http.ResponseWriter, r *http.Request, status domain.ReviewStatus) {
	id := chi.URLParam(r, "id")

	var req reviewRequest
	if r.Body != nil {
		// Note is optional; a bare POST approves without one.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	err := h.matchRepo.Review(id, status, req.Note)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.writeError(w, http.StatusNotFound, "match not found")
		return
	case errors.Is(err, repository.ErrNotPending):
		h.writeError(w, http.StatusConflict, "match is not pending review")
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	link, err := h.matchRepo.GetLink(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, link)
}

// --- orders / shipments ---

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.OrderFilter{
		Customer:  q.Get("customer"),
		PONumber:  q.Get("po"),
		StyleCode: q.Get("style"),
		OrderType: q.Get("type"),
		Page:      parseIntDefault(q.Get("page"), 1),
		Limit:     parseIntDefault(q.Get("limit"), 50),
	}

	orders, total, err := h.orderRepo.List(filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

func (h *Handlers) ListShipments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ShipmentFilter{
		Customer:  q.Get("customer"),
		PONumber:  q.Get("po"),
		StyleCode: q.Get("style"),
		Page:      parseIntDefault(q.Get("page"), 1),
		Limit:     parseIntDefault(q.Get("limit"), 50),
	}

	shipments, total, err := h.shipmentRepo.List(filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"shipments": shipments,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

// --- dashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.matchRepo.GetDashboardStats()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	orderCount, err := h.orderRepo.Count()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	shipmentCount, err := h.shipmentRepo.Count()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"orders":    orderCount,
		"shipments": shipmentCount,
		"matching":  stats,
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
