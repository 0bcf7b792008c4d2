package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/storage"
)

// ErrTooManyRetries is returned when an optimistic transaction keeps losing to
// concurrent writers
var ErrTooManyRetries = errors.New("redis transaction retries exhausted")

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	return s.setJSON(ctx, identityKey(identity.ID), identity)
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	var identity model.Identity
	if err := s.getJSON(ctx, identityKey(id), &identity, model.ErrIdentityNotFound); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	return s.setJSON(ctx, credentialKey(cred.Username), cred)
}

func (s *Storage) GetCredentialByUsername(ctx context.Context, username string) (*model.Credential, error) {
	var cred model.Credential
	if err := s.getJSON(ctx, credentialKey(username), &cred, model.ErrIdentityNotFound); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Farm operations

func (s *Storage) CreateFarm(ctx context.Context, farm *model.Farm) error {
	owner := farm.Player.Owner
	playerData, err := json.Marshal(farm.Player)
	if err != nil {
		return err
	}
	plotData, err := json.Marshal(farm.Plot)
	if err != nil {
		return err
	}

	pKey, plKey := playerKey(owner), plotKey(owner)
	return s.retryTx(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, pKey, plKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return model.ErrAlreadyInitialized
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pKey, playerData, 0)
			pipe.Set(ctx, plKey, plotData, 0)
			return nil
		})
		return err
	}, pKey, plKey)
}

func (s *Storage) GetFarm(ctx context.Context, owner model.IdentityID) (*model.Farm, error) {
	return loadFarm(ctx, s.client, owner)
}

func (s *Storage) FarmExists(ctx context.Context, owner model.IdentityID) (bool, error) {
	n, err := s.client.Exists(ctx, playerKey(owner)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) UpdateFarm(ctx context.Context, owner model.IdentityID, fn storage.UpdateFunc) (*model.Farm, error) {
	pKey, plKey := playerKey(owner), plotKey(owner)

	var committed *model.Farm
	err := s.retryTx(ctx, func(tx *redis.Tx) error {
		farm, err := loadFarm(ctx, tx, owner)
		if err != nil {
			return err
		}
		if err := fn(farm); err != nil {
			return err
		}

		playerData, err := json.Marshal(farm.Player)
		if err != nil {
			return err
		}
		plotData, err := json.Marshal(farm.Plot)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pKey, playerData, 0)
			pipe.Set(ctx, plKey, plotData, 0)
			return nil
		})
		if err != nil {
			return err
		}
		committed = farm
		return nil
	}, pKey, plKey)
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// retryTx runs fn under WATCH on keys, retrying when a watched key changed
// before EXEC. fn must be safe to re-run from scratch.
func (s *Storage) retryTx(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTooManyRetries
}

// loadFarm reads both records of a farm in one round trip
func loadFarm(ctx context.Context, c redis.Cmdable, owner model.IdentityID) (*model.Farm, error) {
	values, err := c.MGet(ctx, playerKey(owner), plotKey(owner)).Result()
	if err != nil {
		return nil, err
	}
	if values[0] == nil || values[1] == nil {
		return nil, model.ErrPlayerNotFound
	}

	var player model.Player
	if err := json.Unmarshal([]byte(values[0].(string)), &player); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", owner, err)
	}
	var plot model.Plot
	if err := json.Unmarshal([]byte(values[1].(string)), &plot); err != nil {
		return nil, fmt.Errorf("decode plot %s: %w", owner, err)
	}
	return &model.Farm{Player: &player, Plot: &plot}, nil
}

// Delegation operations

func (s *Storage) SaveDelegation(ctx context.Context, d *model.Delegation) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, delegationKey(d.ID), data, 0)
	pipe.SAdd(ctx, delegationsByAuthorityKey(d.Authority), string(d.ID))
	pipe.ZAdd(ctx, delegationExpiryKey(), redis.Z{
		Score:  float64(d.ValidUntil.UnixMilli()),
		Member: string(d.ID),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetDelegation(ctx context.Context, id model.DelegationID) (*model.Delegation, error) {
	var d model.Delegation
	if err := s.getJSON(ctx, delegationKey(id), &d, model.ErrDelegationNotFound); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Storage) DeleteDelegation(ctx context.Context, id model.DelegationID) error {
	d, err := s.GetDelegation(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrDelegationNotFound) {
			return nil
		}
		return err
	}
	return s.deleteDelegations(ctx, []*model.Delegation{d})
}

func (s *Storage) ListDelegations(ctx context.Context, authority model.IdentityID) ([]*model.Delegation, error) {
	ids, err := s.client.SMembers(ctx, delegationsByAuthorityKey(authority)).Result()
	if err != nil {
		return nil, err
	}
	return s.getDelegations(ctx, ids)
}

func (s *Storage) DeleteExpiredDelegations(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, delegationExpiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	candidates, err := s.getDelegations(ctx, ids)
	if err != nil {
		return 0, err
	}

	// Millisecond scores can round; re-check with full precision
	expired := make([]*model.Delegation, 0, len(candidates))
	for _, d := range candidates {
		if !d.IsValidAt(now) {
			expired = append(expired, d)
		}
	}

	if err := s.deleteDelegations(ctx, expired); err != nil {
		return 0, err
	}
	return len(expired), nil
}

func (s *Storage) getDelegations(ctx context.Context, ids []string) ([]*model.Delegation, error) {
	if len(ids) == 0 {
		return []*model.Delegation{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = delegationKey(model.DelegationID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.Delegation, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // Deleted since the index was read
		}
		var d model.Delegation
		if err := json.Unmarshal([]byte(val.(string)), &d); err != nil {
			continue // Skip invalid data
		}
		result = append(result, &d)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Storage) deleteDelegations(ctx context.Context, ds []*model.Delegation) error {
	if len(ds) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, d := range ds {
		pipe.Del(ctx, delegationKey(d.ID))
		pipe.SRem(ctx, delegationsByAuthorityKey(d.Authority), string(d.ID))
		pipe.ZRem(ctx, delegationExpiryKey(), string(d.ID))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// JSON helpers

func (s *Storage) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *Storage) getJSON(ctx context.Context, key string, v any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}
