package availability

import (
	"context"
	"errors"
	"roomly/internal/reservations/conflict"
	reserrors "roomly/internal/reservations/errors"
	"roomly/internal/reservations/repository"
	"roomly/internal/reservations/validator"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/model"
	"time"
)

// Service answers whether a room is free for a date range. The answer is
// advisory: it takes no lock, so a later confirm may still fail.
type Service struct {
	repo      repository.ReservationRepository
	validator *validator.ReservationValidator
	cfg       *config.Config
}

func NewService(repo repository.ReservationRepository, validator *validator.ReservationValidator, cfg *config.Config) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

// IsAvailable reports whether no confirmed reservation on roomID overlaps
// [start, end).
func (s *Service) IsAvailable(ctx context.Context, roomID int64, start, end time.Time) (bool, error) {
	window := conflict.Interval{Start: start, End: end}
	if !window.Valid() {
		return false, reserrors.ErrInvalidDateRange
	}

	confirmed, err := s.repo.FindOverlappingConfirmed(ctx, roomID, start, end)
	if err != nil {
		return false, err
	}
	return !conflict.ConflictsWithExisting(window, roomID, 0, confirmed), nil
}

// Check validates req and answers it.
func (s *Service) Check(ctx context.Context, req *model.AvailabilityRequest) (*model.AvailabilityResponse, error) {
	if err := s.validator.ValidateAvailability(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return nil, apperrors.InvalidArgument("Invalid availability request", map[string]any{"errors": fieldErrs})
		}
		return nil, apperrors.InvalidInput(err.Error())
	}

	// validated above
	start, _ := model.ParseDate(req.StartDate)
	end, _ := model.ParseDate(req.EndDate)

	available, err := s.IsAvailable(ctx, *req.RoomID, start, end)
	if err != nil {
		if errors.Is(err, reserrors.ErrInvalidDateRange) {
			return nil, apperrors.InvalidInput(err.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("Request timed out")
		}
		s.cfg.Log.Error("Failed to check availability", "room_id", *req.RoomID, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	return &model.AvailabilityResponse{
		RoomID:    *req.RoomID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Available: available,
	}, nil
}
