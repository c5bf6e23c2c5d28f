package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"attraction-map/middleware"
	"attraction-map/models"
	"attraction-map/utils/errors"

	"github.com/gorilla/mux"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

type RecordService interface {
	Get(ctx context.Context, id string) (models.Record, error)
	Create(ctx context.Context, rec models.Record) error
	List(ctx context.Context) ([]models.Record, error)
}

type RecordHandler struct {
	recordService RecordService
}

func NewRecordHandler(recordService RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recordService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rec)
}

func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec models.Record
	if err := decodeBody(w, r, &rec); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := h.recordService.Create(r.Context(), rec); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, rec)
}

func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.recordService.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	middleware.WriteJSON(w, http.StatusOK, records)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return errors.NewAPIError("INVALID_JSON", "Request body is not valid JSON", http.StatusBadRequest, err.Error())
	}
	return nil
}
