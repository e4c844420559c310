package repository

import (
	"context"
	"errors"
	reserrors "roomly/internal/reservations/errors"
	"roomly/pkg/model"
	"sync"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func newReservation(roomID, userID int64, start, end int, status model.ReservationStatus) *model.Reservation {
	return &model.Reservation{
		RoomID:    roomID,
		UserID:    userID,
		StartDate: day(start),
		EndDate:   day(end),
		Status:    status,
	}
}

func seed(t *testing.T, repo ReservationRepository, reservations ...*model.Reservation) {
	t.Helper()
	for _, r := range reservations {
		if err := repo.Create(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestMemory_CreateAssignsSequentialIDs(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)
	first := newReservation(1, 1, 10, 15, model.StatusPending)
	second := newReservation(1, 2, 12, 20, model.StatusPending)
	seed(t, repo, first, second)

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() || !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Errorf("timestamps not set on create: %+v", first)
	}

	got, err := repo.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	got.Status = model.StatusCancelled

	again, _ := repo.FindByID(context.Background(), 1)
	if again.Status != model.StatusPending {
		t.Errorf("store returned a shared pointer")
	}
}

func TestMemory_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)

	_, err := repo.FindByID(context.Background(), 42)
	if !errors.Is(err, reserrors.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	exists, err := repo.ExistsByID(context.Background(), 42)
	if err != nil || exists {
		t.Errorf("ExistsByID = %v, %v, want false, nil", exists, err)
	}
}

func TestMemory_FindPageAndCount(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)
	for i := 0; i < 25; i++ {
		room := int64(1 + i%2)
		seed(t, repo, newReservation(room, int64(100+i%3), 1, 2, model.StatusPending))
	}

	room := int64(1)
	user := int64(100)

	tests := []struct {
		name      string
		filter    model.SearchFilter
		wantIDs   []int64
		wantCount int64
	}{
		{
			name:      "first page of everything",
			filter:    model.SearchFilter{PageSize: 10},
			wantIDs:   []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantCount: 25,
		},
		{
			name:      "last partial page",
			filter:    model.SearchFilter{PageSize: 10, PageNumber: 2},
			wantIDs:   []int64{21, 22, 23, 24, 25},
			wantCount: 25,
		},
		{
			name:      "page past the end",
			filter:    model.SearchFilter{PageSize: 10, PageNumber: 5},
			wantIDs:   []int64{},
			wantCount: 25,
		},
		{
			name:      "page number beyond offset range",
			filter:    model.SearchFilter{PageSize: 3, PageNumber: 1 << 62},
			wantIDs:   []int64{},
			wantCount: 25,
		},
		{
			name:      "room and user",
			filter:    model.SearchFilter{RoomID: &room, UserID: &user, PageSize: 10},
			wantIDs:   []int64{1, 7, 13, 19, 25},
			wantCount: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.FindPage(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("FindPage: %v", err)
			}
			if len(page) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(page), len(tt.wantIDs))
			}
			for i, r := range page {
				if r.ID != tt.wantIDs[i] {
					t.Errorf("item %d id = %d, want %d", i, r.ID, tt.wantIDs[i])
				}
			}

			count, err := repo.Count(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if count != tt.wantCount {
				t.Errorf("Count = %d, want %d", count, tt.wantCount)
			}
		})
	}
}

func TestMemory_GuardedWrites(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)
	r := newReservation(1, 1, 10, 15, model.StatusPending)
	seed(t, repo, r)
	ctx := context.Background()

	if err := repo.SetStatus(ctx, r.ID, model.StatusConfirmed, model.StatusCancelled); !errors.Is(err, reserrors.ErrStatusChanged) {
		t.Fatalf("SetStatus with wrong expected status: %v", err)
	}
	if err := repo.SetStatus(ctx, r.ID, model.StatusPending, model.StatusCancelled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	update := r.Clone()
	update.RoomID = 9
	if err := repo.Save(ctx, update, model.StatusPending); !errors.Is(err, reserrors.ErrStatusChanged) {
		t.Fatalf("Save on a cancelled record: %v", err)
	}
	if err := repo.SetStatus(ctx, 99, model.StatusPending, model.StatusCancelled); !errors.Is(err, reserrors.ErrNotFound) {
		t.Fatalf("SetStatus on unknown id: %v", err)
	}

	stored, _ := repo.FindByID(ctx, r.ID)
	if stored.Status != model.StatusCancelled || stored.RoomID != 1 {
		t.Errorf("unexpected stored record %+v", stored)
	}
}

func TestMemory_TransactionRollback(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)
	r := newReservation(1, 1, 10, 15, model.StatusPending)
	seed(t, repo, r)
	boom := errors.New("boom")

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		if err := repo.SetStatus(ctx, r.ID, model.StatusPending, model.StatusConfirmed); err != nil {
			return err
		}
		inTx, _ := repo.FindByID(ctx, r.ID)
		if inTx.Status != model.StatusConfirmed {
			t.Errorf("transaction should read its own write")
		}
		outside, _ := repo.FindByID(context.Background(), r.ID)
		if outside.Status != model.StatusPending {
			t.Errorf("uncommitted write leaked outside the transaction")
		}
		if err := repo.Create(ctx, newReservation(2, 1, 1, 2, model.StatusPending)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	stored, _ := repo.FindByID(context.Background(), r.ID)
	if stored.Status != model.StatusPending {
		t.Errorf("rolled back status write was applied")
	}
	count, _ := repo.Count(context.Background(), model.SearchFilter{})
	if count != 1 {
		t.Errorf("rolled back create was applied, count = %d", count)
	}
}

func TestMemory_TransactionDetectsLostUpdate(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)
	r := newReservation(1, 1, 10, 15, model.StatusPending)
	seed(t, repo, r)

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := repo.FindByID(ctx, r.ID); err != nil {
			return err
		}

		moved := r.Clone()
		moved.RoomID = 2
		if err := repo.Save(context.Background(), moved, model.StatusPending); err != nil {
			t.Fatalf("concurrent save: %v", err)
		}

		return repo.SetStatus(ctx, r.ID, model.StatusPending, model.StatusConfirmed)
	})
	if !errors.Is(err, reserrors.ErrStatusChanged) {
		t.Fatalf("error = %v, want ErrStatusChanged", err)
	}

	stored, _ := repo.FindByID(context.Background(), r.ID)
	if stored.Status != model.StatusPending || stored.RoomID != 2 {
		t.Errorf("unexpected stored record %+v", stored)
	}
}

func TestMemory_LockedReadRequiresTransaction(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)

	_, err := repo.FindOverlappingConfirmedLocked(context.Background(), 1, day(1), day(2), 0)
	if !errors.Is(err, reserrors.ErrNoTransaction) {
		t.Fatalf("error = %v, want ErrNoTransaction", err)
	}
}

func TestMemory_FindOverlappingConfirmed(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)
	seed(t, repo,
		newReservation(1, 1, 10, 15, model.StatusConfirmed),
		newReservation(1, 1, 15, 20, model.StatusConfirmed),
		newReservation(1, 1, 10, 20, model.StatusPending),
		newReservation(2, 1, 10, 20, model.StatusConfirmed),
	)

	got, err := repo.FindOverlappingConfirmed(context.Background(), 1, day(12), day(15))
	if err != nil {
		t.Fatalf("FindOverlappingConfirmed: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("got %v, want only reservation 1", got)
	}

	err = repo.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		locked, err := repo.FindOverlappingConfirmedLocked(ctx, 1, day(10), day(20), 1)
		if err != nil {
			return err
		}
		if len(locked) != 1 || locked[0].ID != 2 {
			t.Errorf("locked read = %v, want only reservation 2", locked)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ExecuteTransaction: %v", err)
	}
}

func TestMemory_RoomLockSerialisesTransactions(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Second)
	ctx := context.Background()

	acquired := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			if _, err := repo.FindOverlappingConfirmedLocked(ctx, 1, day(1), day(2), 0); err != nil {
				return err
			}
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := repo.ExecuteTransaction(short, func(ctx context.Context) error {
		_, err := repo.FindOverlappingConfirmedLocked(ctx, 1, day(1), day(2), 0)
		return err
	})
	if !errors.Is(err, reserrors.ErrLockTimeout) {
		t.Fatalf("error = %v, want ErrLockTimeout", err)
	}

	err = repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.FindOverlappingConfirmedLocked(ctx, 2, day(1), day(2), 0)
		return err
	})
	if err != nil {
		t.Fatalf("a different room should not be blocked: %v", err)
	}

	close(release)
	wg.Wait()

	err = repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.FindOverlappingConfirmedLocked(ctx, 1, day(1), day(2), 0)
		return err
	})
	if err != nil {
		t.Fatalf("lock should be free after commit: %v", err)
	}
}

func TestMemory_LockTimeoutFromConfig(t *testing.T) {
	repo := NewMemoryReservationRepository(10 * time.Millisecond)
	ctx := context.Background()

	hold := make(chan struct{})
	acquired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			_, err := repo.FindOverlappingConfirmedLocked(ctx, 7, day(1), day(2), 0)
			close(acquired)
			<-hold
			return err
		})
	}()
	<-acquired

	err := repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.FindOverlappingConfirmedLocked(ctx, 7, day(1), day(2), 0)
		return err
	})
	close(hold)
	<-done

	if !errors.Is(err, reserrors.ErrLockTimeout) {
		t.Fatalf("error = %v, want ErrLockTimeout", err)
	}
}

func TestMemory_LockWaitCanceled(t *testing.T) {
	repo := NewMemoryReservationRepository(time.Minute)
	ctx := context.Background()

	hold := make(chan struct{})
	acquired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			_, err := repo.FindOverlappingConfirmedLocked(ctx, 7, day(1), day(2), 0)
			close(acquired)
			<-hold
			return err
		})
	}()
	<-acquired

	err := repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := repo.FindOverlappingConfirmedLocked(ctx, 7, day(1), day(2), 0)
		return err
	})
	close(hold)
	<-done

	if errors.Is(err, reserrors.ErrLockTimeout) {
		t.Fatalf("canceled wait reported as lock timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
