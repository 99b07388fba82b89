package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Create(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
	if err := domain.CheckBalance(initialBalance); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	acc := domain.Account{
		ID:        uuid.New(),
		Balance:   initialBalance.Round(domain.Scale),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO wallets (id, balance, version, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)`,
		acc.ID.String(), acc.Balance.StringFixed(domain.Scale), acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	return &acc, nil
}

func (m *MySQLAdapter) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanMySQLAccount(m.db.QueryRowContext(ctx, `
		SELECT id, balance, version, created_at, updated_at
		FROM wallets WHERE id = ?`, id.String(),
	))
}

func (m *MySQLAdapter) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	if err := domain.CheckBalance(newBalance); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = CAST(? AS DECIMAL(19,2)), version = version + 1, updated_at = UTC_TIMESTAMP(6)
		WHERE id = ? AND version = ?`,
		newBalance.StringFixed(domain.Scale), id.String(), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM wallets WHERE id = ?`, id.String()).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrWalletNotFound
		}
		if err != nil {
			return fmt.Errorf("query wallet: %w", err)
		}
		return domain.ErrVersionConflict
	}

	return tx.Commit()
}

func (m *MySQLAdapter) ConditionalAdjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireSufficientFunds bool) (int64, error) {
	if !domain.WithinLimit(delta) {
		return 0, nil
	}

	amount := delta.StringFixed(domain.Scale)
	query := `
		UPDATE wallets
		SET balance = balance + CAST(? AS DECIMAL(19,2)), version = version + 1, updated_at = UTC_TIMESTAMP(6)
		WHERE id = ? AND balance + CAST(? AS DECIMAL(19,2)) <= CAST(? AS DECIMAL(19,2))`
	args := []any{amount, id.String(), amount, domain.MaxBalance.StringFixed(domain.Scale)}
	if requireSufficientFunds {
		query += ` AND balance + CAST(? AS DECIMAL(19,2)) >= 0`
		args = append(args, amount)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("adjust wallet: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return rows, nil
}

func (m *MySQLAdapter) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, balance, version, created_at, updated_at
		FROM wallets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acc, err := scanMySQLAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}

	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLAccount(row rowScanner) (*domain.Account, error) {
	var (
		acc domain.Account
		id  string
	)
	err := row.Scan(&id, &acc.Balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan wallet: %w", err)
	}

	acc.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse wallet id %q: %w", id, err)
	}
	return &acc, nil
}
