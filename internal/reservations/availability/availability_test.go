package availability

import (
	"context"
	"errors"
	"roomly/internal/reservations/repository"
	"roomly/internal/reservations/validator"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/logger"
	"roomly/pkg/model"
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func int64Ptr(v int64) *int64 {
	return &v
}

func seed(t *testing.T, repo repository.ReservationRepository, roomID int64, start, end string, status model.ReservationStatus) {
	t.Helper()
	ctx := context.Background()
	r := &model.Reservation{
		UserID:    1,
		RoomID:    roomID,
		StartDate: date(start),
		EndDate:   date(end),
		Status:    model.StatusPending,
	}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if status != model.StatusPending {
		if err := repo.SetStatus(ctx, r.ID, model.StatusPending, status); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
	}
}

func newService(t *testing.T) (*Service, repository.ReservationRepository) {
	t.Helper()
	log := logger.Discard()
	repo := repository.NewMemoryReservationRepository(time.Second)
	return NewService(repo, validator.NewReservationValidator(log), &config.Config{Log: log}), repo
}

func TestService_IsAvailable(t *testing.T) {
	svc, repo := newService(t)
	seed(t, repo, 1, "2024-01-10", "2024-01-15", model.StatusConfirmed)
	seed(t, repo, 1, "2024-02-01", "2024-02-05", model.StatusPending)
	seed(t, repo, 1, "2024-03-01", "2024-03-05", model.StatusCancelled)
	seed(t, repo, 2, "2024-04-01", "2024-04-05", model.StatusConfirmed)

	tests := []struct {
		name   string
		roomID int64
		start  string
		end    string
		want   bool
	}{
		{name: "inside confirmed", roomID: 1, start: "2024-01-11", end: "2024-01-12", want: false},
		{name: "straddles start", roomID: 1, start: "2024-01-08", end: "2024-01-11", want: false},
		{name: "ends on confirmed start", roomID: 1, start: "2024-01-05", end: "2024-01-10", want: true},
		{name: "starts on confirmed end", roomID: 1, start: "2024-01-15", end: "2024-01-20", want: true},
		{name: "pending does not block", roomID: 1, start: "2024-02-02", end: "2024-02-03", want: true},
		{name: "cancelled does not block", roomID: 1, start: "2024-03-02", end: "2024-03-03", want: true},
		{name: "other room", roomID: 1, start: "2024-04-02", end: "2024-04-03", want: true},
		{name: "confirmed in room 2", roomID: 2, start: "2024-04-02", end: "2024-04-03", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsAvailable(context.Background(), tt.roomID, date(tt.start), date(tt.end))
			if err != nil {
				t.Fatalf("IsAvailable() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_IsAvailableRejectsEmptyRange(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.IsAvailable(context.Background(), 1, date("2024-01-10"), date("2024-01-10"))
	if err == nil {
		t.Fatal("expected error for empty range")
	}
}

func TestService_Check(t *testing.T) {
	svc, repo := newService(t)
	seed(t, repo, 1, "2024-01-10", "2024-01-15", model.StatusConfirmed)

	resp, err := svc.Check(context.Background(), &model.AvailabilityRequest{
		RoomID:    int64Ptr(1),
		StartDate: "2024-01-12",
		EndDate:   "2024-01-13",
	})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.Available {
		t.Error("room should not be available")
	}
	if resp.RoomID != 1 || resp.StartDate != "2024-01-12" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestService_CheckInvalid(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name string
		req  *model.AvailabilityRequest
	}{
		{name: "inverted", req: &model.AvailabilityRequest{RoomID: int64Ptr(1), StartDate: "2024-01-13", EndDate: "2024-01-12"}},
		{name: "missing room", req: &model.AvailabilityRequest{StartDate: "2024-01-12", EndDate: "2024-01-13"}},
		{name: "bad date", req: &model.AvailabilityRequest{RoomID: int64Ptr(1), StartDate: "12/01/2024", EndDate: "2024-01-13"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Check(context.Background(), tt.req)
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidInput {
				t.Errorf("Check() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}
