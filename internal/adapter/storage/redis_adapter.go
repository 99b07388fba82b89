package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/core/domain"
)

const (
	walletKeyPrefix = "wallet:"
	walletIndexKey  = "wallets"
)

// Balances are kept as integer minor units so Redis only ever does integer
// arithmetic (HINCRBY) on them.
var compareAndUpdateScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 0 then
	return -1
end

if redis.call('HGET', key, 'version') ~= ARGV[1] then
	return 0
end

redis.call('HSET', key, 'balance', ARGV[2], 'updated_at', ARGV[3])
redis.call('HINCRBY', key, 'version', 1)
return 1
`)

var conditionalAdjustScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 0 then
	return 0
end

local balance = redis.call('HINCRBY', key, 'balance', ARGV[1])
if balance > tonumber(ARGV[5]) or (ARGV[3] == '1' and balance < 0) then
	redis.call('HINCRBY', key, 'balance', ARGV[2])
	return 0
end

redis.call('HINCRBY', key, 'version', 1)
redis.call('HSET', key, 'updated_at', ARGV[4])
return 1
`)

var maxBalanceMinor = domain.MaxBalance.Shift(domain.Scale).IntPart()

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func walletKey(id uuid.UUID) string {
	return walletKeyPrefix + id.String()
}

func (r *RedisAdapter) Create(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
	if err := domain.CheckBalance(initialBalance); err != nil {
		return nil, err
	}
	balance, err := toMinorUnits(initialBalance)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	acc := domain.Account{
		ID:        uuid.New(),
		Balance:   fromMinorUnits(balance),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, walletKey(acc.ID),
			"balance", balance,
			"version", 0,
			"created_at", now.UnixMicro(),
			"updated_at", now.UnixMicro(),
		)
		pipe.ZAdd(ctx, walletIndexKey, redis.Z{Score: float64(now.UnixMicro()), Member: acc.ID.String()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	return &acc, nil
}

func (r *RedisAdapter) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	fields, err := r.client.HGetAll(ctx, walletKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrWalletNotFound
	}

	return parseRedisAccount(id, fields)
}

func (r *RedisAdapter) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	if err := domain.CheckBalance(newBalance); err != nil {
		return err
	}
	balance, err := toMinorUnits(newBalance)
	if err != nil {
		return err
	}

	result, err := compareAndUpdateScript.Run(ctx, r.client, []string{walletKey(id)},
		strconv.FormatInt(expectedVersion, 10),
		balance,
		time.Now().UTC().UnixMicro(),
	).Int()
	if err != nil {
		return fmt.Errorf("compare and update wallet: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return domain.ErrWalletNotFound
	default:
		return domain.ErrVersionConflict
	}
}

func (r *RedisAdapter) ConditionalAdjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireSufficientFunds bool) (int64, error) {
	if !domain.WithinLimit(delta) {
		return 0, nil
	}
	minor, err := toMinorUnits(delta)
	if err != nil {
		return 0, err
	}

	guard := "0"
	if requireSufficientFunds {
		guard = "1"
	}

	result, err := conditionalAdjustScript.Run(ctx, r.client, []string{walletKey(id)},
		minor,
		-minor,
		guard,
		time.Now().UTC().UnixMicro(),
		maxBalanceMinor,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("adjust wallet: %w", err)
	}

	return result, nil
}

func (r *RedisAdapter) List(ctx context.Context) ([]domain.Account, error) {
	ids, err := r.client.ZRange(ctx, walletIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list wallet ids: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, walletKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	accounts := make([]domain.Account, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		id, err := uuid.Parse(ids[i])
		if err != nil {
			return nil, fmt.Errorf("parse wallet id %q: %w", ids[i], err)
		}
		acc, err := parseRedisAccount(id, fields)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}

	return accounts, nil
}

func parseRedisAccount(id uuid.UUID, fields map[string]string) (*domain.Account, error) {
	balance, err := strconv.ParseInt(fields["balance"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse balance of wallet %s: %w", id, err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version of wallet %s: %w", id, err)
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of wallet %s: %w", id, err)
	}
	updatedAt, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at of wallet %s: %w", id, err)
	}

	return &domain.Account{
		ID:        id,
		Balance:   fromMinorUnits(balance),
		Version:   version,
		CreatedAt: time.UnixMicro(createdAt).UTC(),
		UpdatedAt: time.UnixMicro(updatedAt).UTC(),
	}, nil
}

var errNotMinorUnits = errors.New("amount does not fit integer minor units")

func toMinorUnits(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(domain.Scale)
	if !shifted.IsInteger() || !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", errNotMinorUnits, amount)
	}
	return shifted.IntPart(), nil
}

func fromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -domain.Scale)
}
