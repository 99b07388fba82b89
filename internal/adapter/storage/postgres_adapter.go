package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/core/domain"
)

type PostgresAdapter struct {
	db *pgxpool.Pool
}

func NewPostgresAdapter(db *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

// Balances cross the driver boundary as text so no binary float conversion
// is ever involved.
const pgSelectWallet = `SELECT id, balance::text, version, created_at, updated_at FROM wallets`

func (p *PostgresAdapter) Create(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
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

	_, err := p.db.Exec(ctx,
		`INSERT INTO wallets(id, balance, version, created_at, updated_at)
		 VALUES($1, $2::numeric, 0, $3, $4)`,
		acc.ID, acc.Balance.StringFixed(domain.Scale), acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	return &acc, nil
}

func (p *PostgresAdapter) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanPgAccount(p.db.QueryRow(ctx, pgSelectWallet+` WHERE id = $1`, id))
}

func (p *PostgresAdapter) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	if err := domain.CheckBalance(newBalance); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE wallets
		    SET balance = $1::numeric, version = version + 1, updated_at = now()
		  WHERE id = $2 AND version = $3`,
		newBalance.StringFixed(domain.Scale), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists int
		err := tx.QueryRow(ctx, `SELECT 1 FROM wallets WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrWalletNotFound
		}
		if err != nil {
			return fmt.Errorf("query wallet: %w", err)
		}
		return domain.ErrVersionConflict
	}

	return tx.Commit(ctx)
}

func (p *PostgresAdapter) ConditionalAdjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireSufficientFunds bool) (int64, error) {
	if !domain.WithinLimit(delta) {
		return 0, nil
	}

	query := `UPDATE wallets
	             SET balance = balance + $1::numeric, version = version + 1, updated_at = now()
	           WHERE id = $2 AND balance + $1::numeric <= $3::numeric`
	if requireSufficientFunds {
		query += ` AND balance + $1::numeric >= 0`
	}

	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, query, delta.StringFixed(domain.Scale), id, domain.MaxBalance.StringFixed(domain.Scale))
	if err != nil {
		return 0, fmt.Errorf("adjust wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresAdapter) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := p.db.Query(ctx, pgSelectWallet+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acc, err := scanPgAccount(rows)
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

func scanPgAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc     domain.Account
		balance string
	)
	err := row.Scan(&acc.ID, &balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan wallet: %w", err)
	}

	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return &acc, nil
}
