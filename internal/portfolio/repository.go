package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var (
	// ErrUserNotFound is returned when the owning user does not exist.
	ErrUserNotFound = apperr.New(apperr.ErrNotFound, "User not found")
	// ErrHoldingExists is returned when the coin is already held.
	ErrHoldingExists = apperr.New(apperr.ErrConflict, "Coin already exists within portfolio.")
	// ErrHoldingNotFound is returned when the coin is not held.
	ErrHoldingNotFound = apperr.New(apperr.ErrNotFound, "Coin not found in portfolio")
)

// Repository persists holdings and valuation history.
type Repository interface {
	Holdings(ctx context.Context, userID string) ([]Holding, error)
	AddHolding(ctx context.Context, userID string, holding Holding) error
	RemoveHolding(ctx context.Context, userID, coinID string) (int64, error)
	UpdateAmount(ctx context.Context, userID, coinID string, amount decimal.Decimal) error
	Snapshots(ctx context.Context, userID string) ([]Snapshot, error)
	AppendSnapshot(ctx context.Context, userID string, snapshot Snapshot) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed portfolio repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Holdings lists the user's holdings in the order they were added.
func (r *PostgresRepository) Holdings(ctx context.Context, userID string) ([]Holding, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT coin_id, amount::text, added_at FROM holdings
        WHERE user_id = $1 ORDER BY added_at, coin_id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holdings := []Holding{}
	for rows.Next() {
		var (
			h      Holding
			amount string
		)
		if err := rows.Scan(&h.CoinID, &amount, &h.AddedAt); err != nil {
			return nil, err
		}
		if h.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		h.AddedAt = h.AddedAt.UTC()
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// AddHolding inserts a holding and touches the owner's update timestamp.
func (r *PostgresRepository) AddHolding(ctx context.Context, userID string, holding Holding) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO holdings (user_id, coin_id, amount, added_at) VALUES ($1, $2, $3::numeric, $4)`,
		uid, holding.CoinID, holding.Amount.String(), holding.AddedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrHoldingExists
		case foreignKeyViolation:
			return ErrUserNotFound
		}
	}
	if err != nil {
		return err
	}
	if err := touchUser(ctx, tx, uid); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RemoveHolding deletes the holding and reports how many rows were removed.
func (r *PostgresRepository) RemoveHolding(ctx context.Context, userID, coinID string) (int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, ErrUserNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM holdings WHERE user_id = $1 AND coin_id = $2`, uid, coinID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// UpdateAmount replaces the amount of an existing holding.
func (r *PostgresRepository) UpdateAmount(ctx context.Context, userID, coinID string, amount decimal.Decimal) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE holdings SET amount = $3::numeric WHERE user_id = $1 AND coin_id = $2`,
		uid, coinID, amount.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrHoldingNotFound
	}
	return nil
}

// Snapshots returns the valuation history, oldest first.
func (r *PostgresRepository) Snapshots(ctx context.Context, userID string) ([]Snapshot, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT recorded_at, value::text FROM portfolio_values
        WHERE user_id = $1 ORDER BY recorded_at, id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		var (
			s     Snapshot
			value string
		)
		if err := rows.Scan(&s.Timestamp, &value); err != nil {
			return nil, err
		}
		if s.Value, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		s.Timestamp = s.Timestamp.UTC()
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// AppendSnapshot stores a new valuation entry.
func (r *PostgresRepository) AppendSnapshot(ctx context.Context, userID string, snapshot Snapshot) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}
	_, err = r.db.Exec(ctx, `INSERT INTO portfolio_values (user_id, recorded_at, value) VALUES ($1, $2, $3::numeric)`,
		uid, snapshot.Timestamp.UTC(), snapshot.Value.String())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrUserNotFound
	}
	return err
}

func touchUser(ctx context.Context, tx pgx.Tx, uid uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE users SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), uid)
	return err
}
