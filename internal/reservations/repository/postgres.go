package repository

import (
	"context"
	"errors"
	"fmt"
	reserrors "roomly/internal/reservations/errors"
	"roomly/pkg/config"
	pgtx "roomly/pkg/db/postgres"
	"roomly/pkg/model"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	TableName = "reservations"

	// lock_not_available, raised when lock_timeout expires.
	pgLockNotAvailable = "55P03"
)

const reservationColumns = "id, user_id, room_id, start_date, end_date, status, created_at, updated_at"

type postgresReservationRepository struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	txManager pgtx.TransactionManager
}

func NewPostgresReservationRepository(cfg *config.Config) ReservationRepository {
	return &postgresReservationRepository{
		cfg:       cfg,
		pool:      cfg.Client.Postgres,
		txManager: pgtx.NewTransactionManager(cfg.Client.Postgres),
	}
}

func (r *postgresReservationRepository) conn(ctx context.Context) pgtx.Querier {
	return pgtx.Conn(ctx, r.pool)
}

// FindByID locks the row when called inside a transaction, so a concurrent
// guarded write on the same reservation waits for this transaction to end.
func (r *postgresReservationRepository) FindByID(ctx context.Context, id int64) (*model.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM " + TableName + " WHERE id = $1"
	if _, ok := pgtx.TxFromContext(ctx); ok {
		query += " FOR UPDATE"
	}

	reservation, err := scanReservation(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return reservation, nil
}

func (r *postgresReservationRepository) FindPage(ctx context.Context, filter model.SearchFilter) ([]*model.Reservation, error) {
	where, args := buildSearchFilter(filter)
	query := "SELECT " + reservationColumns + " FROM " + TableName + where + " ORDER BY id"
	if filter.PageSize > 0 {
		args = append(args, filter.PageSize, filter.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	return collectReservations(rows)
}

func (r *postgresReservationRepository) Count(ctx context.Context, filter model.SearchFilter) (int64, error) {
	where, args := buildSearchFilter(filter)

	var count int64
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM "+TableName+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *postgresReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	query := `
		INSERT INTO ` + TableName + ` (user_id, room_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.conn(ctx).QueryRow(ctx, query,
		reservation.UserID,
		reservation.RoomID,
		reservation.StartDate,
		reservation.EndDate,
		reservation.Status,
	).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *postgresReservationRepository) Save(ctx context.Context, reservation *model.Reservation, expected model.ReservationStatus) error {
	query := `
		UPDATE ` + TableName + `
		SET user_id = $2, room_id = $3, start_date = $4, end_date = $5, status = $6, updated_at = now()
		WHERE id = $1 AND status = $7
		RETURNING created_at, updated_at`

	err := r.conn(ctx).QueryRow(ctx, query,
		reservation.ID,
		reservation.UserID,
		reservation.RoomID,
		reservation.StartDate,
		reservation.EndDate,
		reservation.Status,
		expected,
	).Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.guardFailure(ctx, reservation.ID)
		}
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

func (r *postgresReservationRepository) SetStatus(ctx context.Context, id int64, expected, status model.ReservationStatus) error {
	query := "UPDATE " + TableName + " SET status = $2, updated_at = now() WHERE id = $1 AND status = $3"

	tag, err := r.conn(ctx).Exec(ctx, query, id, status, expected)
	if err != nil {
		return fmt.Errorf("failed to set reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *postgresReservationRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+TableName+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}
	return exists, nil
}

// FindOverlappingConfirmedLocked serialises confirms per room with a
// transaction-scoped advisory lock, then row-locks the overlapping set. The
// advisory lock also covers the case where there is no row to lock yet.
func (r *postgresReservationRepository) FindOverlappingConfirmedLocked(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) ([]*model.Reservation, error) {
	tx, ok := pgtx.TxFromContext(ctx)
	if !ok {
		return nil, reserrors.ErrNoTransaction
	}

	timeout := fmt.Sprintf("%dms", r.cfg.LockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", roomID); err != nil {
		return nil, lockError(roomID, err)
	}

	query := "SELECT " + reservationColumns + " FROM " + TableName + `
		WHERE room_id = $1 AND status = $2 AND start_date < $4 AND end_date > $3 AND id <> $5
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.Query(ctx, query, roomID, model.StatusConfirmed, start, end, excludeID)
	if err != nil {
		return nil, lockError(roomID, err)
	}
	reservations, err := collectReservations(rows)
	if err != nil {
		return nil, lockError(roomID, err)
	}
	return reservations, nil
}

func (r *postgresReservationRepository) FindOverlappingConfirmed(ctx context.Context, roomID int64, start, end time.Time) ([]*model.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM " + TableName + `
		WHERE room_id = $1 AND status = $2 AND start_date < $4 AND end_date > $3
		ORDER BY id`

	rows, err := r.conn(ctx).Query(ctx, query, roomID, model.StatusConfirmed, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	return collectReservations(rows)
}

func (r *postgresReservationRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *postgresReservationRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresReservationRepository) guardFailure(ctx context.Context, id int64) error {
	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return reserrors.ErrNotFound
	}
	return reserrors.ErrStatusChanged
}

func lockError(roomID int64, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: room %d", reserrors.ErrLockTimeout, roomID)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: room %d: %w", reserrors.ErrLockTimeout, roomID, err)
	}
	return fmt.Errorf("failed to lock room %d: %w", roomID, err)
}

func buildSearchFilter(filter model.SearchFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.RoomID != nil {
		args = append(args, *filter.RoomID)
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.RoomID,
		&res.StartDate,
		&res.EndDate,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.StartDate = res.StartDate.UTC()
	res.EndDate = res.EndDate.UTC()
	return &res, nil
}

func collectReservations(rows pgx.Rows) ([]*model.Reservation, error) {
	defer rows.Close()

	reservations := []*model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reservations: %w", err)
	}
	return reservations, nil
}
