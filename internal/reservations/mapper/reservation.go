package mapper

import (
	"fmt"
	"roomly/pkg/model"
)

// ToDomain converts a validated request into a reservation without id or
// status; the caller decides both.
func ToDomain(req *model.ReservationRequest) (*model.Reservation, error) {
	if req.UserID == nil || req.RoomID == nil {
		return nil, fmt.Errorf("user_id and room_id are required")
	}

	start, err := model.ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		return nil, err
	}

	return &model.Reservation{
		UserID:    *req.UserID,
		RoomID:    *req.RoomID,
		StartDate: start,
		EndDate:   end,
	}, nil
}

func ToResponse(r *model.Reservation) *model.ReservationResponse {
	return &model.ReservationResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		RoomID:    r.RoomID,
		StartDate: model.FormatDate(r.StartDate),
		EndDate:   model.FormatDate(r.EndDate),
		Status:    r.Status.String(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func ToResponses(reservations []*model.Reservation) []*model.ReservationResponse {
	out := make([]*model.ReservationResponse, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, ToResponse(r))
	}
	return out
}
