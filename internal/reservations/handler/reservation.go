package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"roomly/internal/reservations/mapper"
	"roomly/internal/reservations/service"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"
	"roomly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityChecker interface {
	Check(ctx context.Context, req *model.AvailabilityRequest) (*model.AvailabilityResponse, error)
}

type ReservationHandler struct {
	service      service.ReservationService
	availability AvailabilityChecker
	cfg          *config.Config
	log          *logger.Logger
}

func NewReservationHandler(service service.ReservationService, availability AvailabilityChecker, cfg *config.Config) *ReservationHandler {
	return &ReservationHandler{
		service:      service,
		availability: availability,
		cfg:          cfg,
		log:          cfg.Log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	reservation, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, mapper.ToResponse(reservation)); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ParseID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	reservation, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", mapper.ToResponse(reservation))
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pageSize, pageNumber, err := httputil.ExtractPage(r, h.cfg.DefaultPageSize, h.cfg.MaxPageSize)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	roomID, err := httputil.OptionalInt64(r, "room_id")
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	userID, err := httputil.OptionalInt64(r, "user_id")
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	filter := model.SearchFilter{
		RoomID:     roomID,
		UserID:     userID,
		PageSize:   pageSize,
		PageNumber: pageNumber,
	}
	reservations, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, mapper.ToResponses(reservations), total, pageSize, pageNumber); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ParseID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	var req model.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	reservation, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	h.writeSuccess(w, "Update", mapper.ToResponse(reservation))
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ParseID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	reservation, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	h.writeSuccess(w, "Cancel", mapper.ToResponse(reservation))
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ParseID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	reservation, err := h.service.Confirm(r.Context(), id)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	h.writeSuccess(w, "Confirm", mapper.ToResponse(reservation))
}

func (h *ReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("Invalid request body"))
		return
	}
	h.checkAvailability(w, r, &req)
}

func (h *ReservationHandler) GetAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	roomID, err := httputil.OptionalInt64(r, "room_id")
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}

	query := r.URL.Query()
	h.checkAvailability(w, r, &model.AvailabilityRequest{
		RoomID:    roomID,
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
	})
}

func (h *ReservationHandler) checkAvailability(w http.ResponseWriter, r *http.Request, req *model.AvailabilityRequest) {
	resp, err := h.availability.Check(r.Context(), req)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}
	h.writeSuccess(w, "CheckAvailability", resp)
}

func (h *ReservationHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if appErr := apperrors.AsAppError(err); appErr.Code == apperrors.CodeInternal {
		h.log.Error("request failed", "handler", handler, "error", err)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
