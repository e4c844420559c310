package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"roomly/internal/reservations/conflict"
	reserrors "roomly/internal/reservations/errors"
	"roomly/pkg/model"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	reservation *model.Reservation
	rev         uint64
}

type stagedWrite struct {
	reservation *model.Reservation
	baseRev     uint64
	created     bool
}

// memoryTx stages writes until commit. reads remembers the revision of every
// record the transaction looked at so that commit can detect lost updates.
type memoryTx struct {
	writes map[int64]*stagedWrite
	reads  map[int64]uint64
	rooms  []int64
}

type memoryTxKey struct{}

func memoryTxFrom(ctx context.Context) *memoryTx {
	tx, _ := ctx.Value(memoryTxKey{}).(*memoryTx)
	return tx
}

type memoryReservationRepository struct {
	mu          sync.RWMutex
	entries     map[int64]*memoryEntry
	nextID      atomic.Int64
	rooms       *roomMutexes
	lockTimeout time.Duration
	now         func() time.Time
}

// NewMemoryReservationRepository returns a process-local store. Room locks
// taken by FindOverlappingConfirmedLocked wait at most lockTimeout.
func NewMemoryReservationRepository(lockTimeout time.Duration) ReservationRepository {
	return &memoryReservationRepository{
		entries:     make(map[int64]*memoryEntry),
		rooms:       newRoomMutexes(),
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id int64) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx := memoryTxFrom(ctx)
	if tx != nil {
		if w, ok := tx.writes[id]; ok {
			return w.reservation.Clone(), nil
		}
	}

	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, reserrors.ErrNotFound
	}

	if tx != nil {
		if _, seen := tx.reads[id]; !seen {
			tx.reads[id] = e.rev
		}
	}
	return e.reservation.Clone(), nil
}

func (r *memoryReservationRepository) FindPage(ctx context.Context, filter model.SearchFilter) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := r.filter(ctx, func(res *model.Reservation) bool {
		return matchesFilter(res, filter)
	})

	if filter.PageSize <= 0 {
		return matched, nil
	}
	offset := filter.Offset()
	if offset < 0 || offset >= int64(len(matched)) {
		return []*model.Reservation{}, nil
	}
	end := min(offset+int64(filter.PageSize), int64(len(matched)))
	return matched[offset:end], nil
}

func (r *memoryReservationRepository) Count(ctx context.Context, filter model.SearchFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	matched := r.filter(ctx, func(res *model.Reservation) bool {
		return matchesFilter(res, filter)
	})
	return int64(len(matched)), nil
}

func (r *memoryReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.now()
	reservation.ID = r.nextID.Add(1)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	if tx := memoryTxFrom(ctx); tx != nil {
		tx.writes[reservation.ID] = &stagedWrite{reservation: reservation.Clone(), created: true}
		return nil
	}

	r.mu.Lock()
	r.entries[reservation.ID] = &memoryEntry{reservation: reservation.Clone(), rev: 1}
	r.mu.Unlock()
	return nil
}

func (r *memoryReservationRepository) Save(ctx context.Context, reservation *model.Reservation, expected model.ReservationStatus) error {
	written, err := r.write(ctx, reservation.ID, expected, func(current *model.Reservation) *model.Reservation {
		next := reservation.Clone()
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = r.now()
		return next
	})
	if err != nil {
		return err
	}
	*reservation = *written
	return nil
}

func (r *memoryReservationRepository) SetStatus(ctx context.Context, id int64, expected, status model.ReservationStatus) error {
	_, err := r.write(ctx, id, expected, func(current *model.Reservation) *model.Reservation {
		current.Status = status
		current.UpdatedAt = r.now()
		return current
	})
	return err
}

func (r *memoryReservationRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	_, err := r.FindByID(ctx, id)
	if errors.Is(err, reserrors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memoryReservationRepository) FindOverlappingConfirmedLocked(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) ([]*model.Reservation, error) {
	tx := memoryTxFrom(ctx)
	if tx == nil {
		return nil, reserrors.ErrNoTransaction
	}

	if !slices.Contains(tx.rooms, roomID) {
		if err := r.rooms.lock(ctx, roomID, r.lockTimeout); err != nil {
			return nil, err
		}
		tx.rooms = append(tx.rooms, roomID)
	}

	return r.overlapping(ctx, roomID, start, end, excludeID), nil
}

func (r *memoryReservationRepository) FindOverlappingConfirmed(ctx context.Context, roomID int64, start, end time.Time) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.overlapping(ctx, roomID, start, end, 0), nil
}

// ExecuteTransaction stages every write made through the callback's ctx and
// applies them atomically when fn succeeds. Commit fails with
// ErrStatusChanged if a record the transaction read or wrote was committed
// by someone else in the meantime. Room locks are released on return.
func (r *memoryReservationRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if memoryTxFrom(ctx) != nil {
		return fn(ctx)
	}

	tx := &memoryTx{
		writes: make(map[int64]*stagedWrite),
		reads:  make(map[int64]uint64),
	}
	defer func() {
		for _, room := range tx.rooms {
			r.rooms.unlock(room)
		}
	}()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		return err
	}
	return r.commit(tx)
}

func (r *memoryReservationRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *memoryReservationRepository) write(
	ctx context.Context,
	id int64,
	expected model.ReservationStatus,
	mutate func(current *model.Reservation) *model.Reservation,
) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if tx := memoryTxFrom(ctx); tx != nil {
		current, baseRev, created, err := r.txCurrent(tx, id)
		if err != nil {
			return nil, err
		}
		if current.Status != expected {
			return nil, reserrors.ErrStatusChanged
		}
		next := mutate(current)
		tx.writes[id] = &stagedWrite{reservation: next, baseRev: baseRev, created: created}
		return next.Clone(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, reserrors.ErrNotFound
	}
	if e.reservation.Status != expected {
		return nil, reserrors.ErrStatusChanged
	}
	next := mutate(e.reservation.Clone())
	r.entries[id] = &memoryEntry{reservation: next, rev: e.rev + 1}
	return next.Clone(), nil
}

// txCurrent returns the record as the transaction sees it together with the
// revision commit must still find.
func (r *memoryReservationRepository) txCurrent(tx *memoryTx, id int64) (*model.Reservation, uint64, bool, error) {
	if w, ok := tx.writes[id]; ok {
		return w.reservation.Clone(), w.baseRev, w.created, nil
	}

	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, 0, false, reserrors.ErrNotFound
	}

	baseRev, seen := tx.reads[id]
	if !seen {
		baseRev = e.rev
		tx.reads[id] = baseRev
	}
	return e.reservation.Clone(), baseRev, false, nil
}

func (r *memoryReservationRepository) commit(tx *memoryTx) error {
	if len(tx.writes) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, w := range tx.writes {
		if w.created {
			continue
		}
		e, ok := r.entries[id]
		if !ok || e.rev != w.baseRev {
			return fmt.Errorf("commit reservation %d: %w", id, reserrors.ErrStatusChanged)
		}
	}

	for id, w := range tx.writes {
		rev := uint64(1)
		if e, ok := r.entries[id]; ok {
			rev = e.rev + 1
		}
		r.entries[id] = &memoryEntry{reservation: w.reservation, rev: rev}
	}
	return nil
}

// filter returns clones of the records visible to ctx that satisfy keep,
// ordered by id.
func (r *memoryReservationRepository) filter(ctx context.Context, keep func(*model.Reservation) bool) []*model.Reservation {
	r.mu.RLock()
	visible := make(map[int64]*model.Reservation, len(r.entries))
	for id, e := range r.entries {
		visible[id] = e.reservation
	}
	r.mu.RUnlock()

	if tx := memoryTxFrom(ctx); tx != nil {
		for id, w := range tx.writes {
			visible[id] = w.reservation
		}
	}

	out := make([]*model.Reservation, 0, len(visible))
	for _, res := range visible {
		if keep(res) {
			out = append(out, res.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Reservation) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r *memoryReservationRepository) overlapping(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) []*model.Reservation {
	window := conflict.Interval{Start: start, End: end}
	return r.filter(ctx, func(res *model.Reservation) bool {
		return res.RoomID == roomID &&
			res.ID != excludeID &&
			res.Status == model.StatusConfirmed &&
			conflict.Overlaps(window, conflict.Of(res))
	})
}

func matchesFilter(res *model.Reservation, filter model.SearchFilter) bool {
	if filter.RoomID != nil && res.RoomID != *filter.RoomID {
		return false
	}
	if filter.UserID != nil && res.UserID != *filter.UserID {
		return false
	}
	return true
}

// roomMutexes is a set of per-room locks whose acquisition honours ctx.
type roomMutexes struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func newRoomMutexes() *roomMutexes {
	return &roomMutexes{slots: make(map[int64]chan struct{})}
}

func (m *roomMutexes) slot(roomID int64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.slots[roomID]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[roomID] = ch
	}
	return ch
}

func (m *roomMutexes) lock(ctx context.Context, roomID int64, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case m.slot(roomID) <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: room %d: %w", reserrors.ErrLockTimeout, roomID, ctx.Err())
		}
		return fmt.Errorf("wait for room %d lock: %w", roomID, ctx.Err())
	}
}

func (m *roomMutexes) unlock(roomID int64) {
	<-m.slot(roomID)
}
