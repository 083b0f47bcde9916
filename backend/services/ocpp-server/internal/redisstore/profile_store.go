package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/models"
)

// ErrNotFound is returned when no profile was applied to the charge point.
var ErrNotFound = errors.New("redisstore: profile not found")

// Commands is the part of redis.Cmdable the store uses.
type Commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// ProfileStore keeps the last applied charging profile per charge point.
type ProfileStore struct {
	client Commands
	ttl    time.Duration
}

// NewProfileStore returns redis-backed store.
func NewProfileStore(client Commands, ttl time.Duration) *ProfileStore {
	return &ProfileStore{client: client, ttl: ttl}
}

func (s *ProfileStore) key(chargePointID string) string {
	return fmt.Sprintf("smartcharging:profile:%s", chargePointID)
}

// Save caches profile.
func (s *ProfileStore) Save(ctx context.Context, profile models.AppliedProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(profile.ChargePointID), data, s.ttl).Err()
}

// Get returns cached profile.
func (s *ProfileStore) Get(ctx context.Context, chargePointID string) (*models.AppliedProfile, error) {
	result, err := s.client.Get(ctx, s.key(chargePointID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var profile models.AppliedProfile
	if err := json.Unmarshal([]byte(result), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
