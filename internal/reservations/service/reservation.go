package service

import (
	"context"
	"errors"
	"fmt"
	"roomly/internal/reservations/conflict"
	reserrors "roomly/internal/reservations/errors"
	"roomly/internal/reservations/events"
	"roomly/internal/reservations/lifecycle"
	"roomly/internal/reservations/mapper"
	"roomly/internal/reservations/repository"
	"roomly/internal/reservations/validator"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/metrics"
	"roomly/pkg/model"
	"sync"
)

type ReservationService interface {
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	List(ctx context.Context, filter model.SearchFilter) ([]*model.Reservation, int64, error)
	Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error)
	Update(ctx context.Context, id int64, req *model.ReservationRequest) (*model.Reservation, error)
	Cancel(ctx context.Context, id int64) (*model.Reservation, error)
	Confirm(ctx context.Context, id int64) (*model.Reservation, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	validator *validator.ReservationValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &reservationService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *reservationService) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve reservation")
	}
	return reservation, nil
}

func (s *reservationService) List(ctx context.Context, filter model.SearchFilter) ([]*model.Reservation, int64, error) {
	filter.PageSize = s.cfg.NormalizePageSize(filter.PageSize)
	filter.PageNumber = config.NormalizePageNumber(filter.PageNumber)

	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = s.repo.FindPage(ctx, filter)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, count, nil
}

func (s *reservationService) Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error) {
	reservation, err := s.toDomain(req)
	if err != nil {
		return nil, err
	}
	reservation.Status = lifecycle.Initial

	if err := s.repo.Create(ctx, reservation); err != nil {
		s.cfg.Log.Error("Failed to create reservation", "error", err)
		return nil, s.translate(err, 0, "Failed to create reservation")
	}

	metrics.IncTransition("created")
	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"room_id", reservation.RoomID,
		"user_id", reservation.UserID,
		"start_date", model.FormatDate(reservation.StartDate),
		"end_date", model.FormatDate(reservation.EndDate),
	)
	s.publish(ctx, events.EventCreated, reservation)
	return reservation, nil
}

// Update overwrites the mutable fields of a pending reservation. The write is
// guarded on the status that was read, so a concurrent confirm or cancel is
// never clobbered.
func (s *reservationService) Update(ctx context.Context, id int64, req *model.ReservationRequest) (*model.Reservation, error) {
	changes, err := s.toDomain(req)
	if err != nil {
		return nil, err
	}

	var updated *model.Reservation
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		next, err := lifecycle.Transition(current.Status, lifecycle.Update)
		if err != nil {
			return err
		}

		changes.ID = current.ID
		changes.Status = next
		changes.CreatedAt = current.CreatedAt
		if err := s.repo.Save(txCtx, changes, current.Status); err != nil {
			return err
		}
		updated = changes
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to update reservation", "id", id, "error", err)
		return nil, s.translate(err, id, "Failed to update reservation")
	}

	metrics.IncTransition("updated")
	s.cfg.Log.Info("Reservation updated successfully", "id", id)
	s.publish(ctx, events.EventUpdated, updated)
	return updated, nil
}

func (s *reservationService) Cancel(ctx context.Context, id int64) (*model.Reservation, error) {
	cancelled, err := s.changeStatus(ctx, id, lifecycle.Cancel, nil)
	if err != nil {
		s.cfg.Log.Warn("Failed to cancel reservation", "id", id, "error", err)
		return nil, s.translate(err, id, "Failed to cancel reservation")
	}

	metrics.IncTransition("cancelled")
	s.cfg.Log.Info("Reservation cancelled successfully", "id", id)
	s.publish(ctx, events.EventCancelled, cancelled)
	return cancelled, nil
}

// Confirm promotes a pending reservation to confirmed unless a confirmed
// reservation on the same room overlaps it. The overlap check runs under the
// room lock taken by FindOverlappingConfirmedLocked, which is held until the
// transaction ends, so two overlapping confirms can never both succeed.
func (s *reservationService) Confirm(ctx context.Context, id int64) (*model.Reservation, error) {
	confirmed, err := s.changeStatus(ctx, id, lifecycle.Confirm, s.checkConflicts)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			metrics.IncConfirmConflict()
		}
		s.cfg.Log.Warn("Failed to confirm reservation", "id", id, "error", err)
		return nil, s.translate(err, id, "Failed to confirm reservation")
	}

	metrics.IncTransition("confirmed")
	s.cfg.Log.Info("Reservation confirmed successfully", "id", id, "room_id", confirmed.RoomID)
	s.publish(ctx, events.EventConfirmed, confirmed)
	return confirmed, nil
}

// changeStatus applies action to the reservation in one transaction. check,
// when set, runs after the lifecycle check and before the write.
func (s *reservationService) changeStatus(
	ctx context.Context,
	id int64,
	action lifecycle.Action,
	check func(ctx context.Context, current *model.Reservation) error,
) (*model.Reservation, error) {
	var result *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		next, err := lifecycle.Transition(current.Status, action)
		if err != nil {
			return err
		}

		if check != nil {
			if err := check(txCtx, current); err != nil {
				return err
			}
		}

		if err := s.repo.SetStatus(txCtx, id, current.Status, next); err != nil {
			return err
		}

		result, err = s.repo.FindByID(txCtx, id)
		return err
	})
	return result, err
}

func (s *reservationService) checkConflicts(ctx context.Context, current *model.Reservation) error {
	overlapping, err := s.repo.FindOverlappingConfirmedLocked(ctx,
		current.RoomID,
		current.StartDate,
		current.EndDate,
		current.ID,
	)
	if err != nil {
		return err
	}

	ids := conflict.Conflicts(conflict.Of(current), current.RoomID, current.ID, overlapping)
	if len(ids) == 0 {
		return nil
	}
	return apperrors.Conflict(
		fmt.Sprintf("Reservation %d overlaps confirmed reservation(s) %v in room %d", current.ID, ids, current.RoomID),
	).WithDetails(map[string]any{"conflicting_ids": ids})
}

func (s *reservationService) toDomain(req *model.ReservationRequest) (*model.Reservation, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Request body is required")
	}
	if err := s.validator.Validate(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return nil, apperrors.InvalidArgument("Invalid reservation input", map[string]any{"errors": fieldErrs})
		}
		return nil, apperrors.InvalidInput(err.Error())
	}

	reservation, err := mapper.ToDomain(req)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return reservation, nil
}

// publish hands the event to the broker after commit. Failures are logged
// and never fail the operation.
func (s *reservationService) publish(ctx context.Context, eventType string, reservation *model.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, events.NewReservationEvent(eventType, reservation)); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"id", reservation.ID,
			"error", err,
		)
	}
}

// translate maps repository and lifecycle errors onto the API taxonomy.
func (s *reservationService) translate(err error, id int64, internalMessage string) error {
	if apperrors.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, reserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reservation", id)

	case errors.Is(err, lifecycle.ErrNotPending),
		errors.Is(err, lifecycle.ErrAlreadyCancelled),
		errors.Is(err, lifecycle.ErrConfirmedNotCancellable):
		return apperrors.FailedPrecondition(lifecycleMessage(err))

	case errors.Is(err, reserrors.ErrStatusChanged):
		return apperrors.FailedPrecondition(reserrors.ErrStatusChanged.Error())

	case errors.Is(err, reserrors.ErrLockTimeout):
		metrics.IncLockTimeout()
		return apperrors.Timeout(reserrors.ErrLockTimeout.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Request timed out")
	}

	return apperrors.Internal(internalMessage, err)
}

// lifecycleMessage strips transaction wrapping from a lifecycle error.
func lifecycleMessage(err error) string {
	var statusErr *lifecycle.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	for _, sentinel := range []error{
		lifecycle.ErrAlreadyCancelled,
		lifecycle.ErrConfirmedNotCancellable,
		lifecycle.ErrNotPending,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
