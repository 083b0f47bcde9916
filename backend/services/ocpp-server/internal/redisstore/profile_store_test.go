package redisstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/models"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.New("unexpected value type"))
	}
	f.values[key] = string(data)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func TestProfileStoreSaveAndGet(t *testing.T) {
	client := newFakeRedis()
	store := NewProfileStore(client, time.Hour)
	appliedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	profile := models.AppliedProfile{ChargePointID: "CP-1", Limit: 1234.5, Unit: "W", SolarPower: 1234.5, AppliedAt: appliedAt}
	if err := store.Save(context.Background(), profile); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, ok := client.values["smartcharging:profile:CP-1"]
	if !ok {
		t.Fatalf("profile not stored under expected key, keys: %v", client.values)
	}
	if !strings.Contains(raw, `"chargePointId":"CP-1"`) || !strings.Contains(raw, `"limit":1234.5`) {
		t.Fatalf("unexpected stored value %s", raw)
	}
	if client.ttls["smartcharging:profile:CP-1"] != time.Hour {
		t.Fatalf("unexpected ttl %s", client.ttls["smartcharging:profile:CP-1"])
	}

	got, err := store.Get(context.Background(), "CP-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Limit != 1234.5 || got.Unit != "W" || !got.AppliedAt.Equal(appliedAt) {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestProfileStoreGetErrors(t *testing.T) {
	client := newFakeRedis()
	store := NewProfileStore(client, time.Hour)

	if _, err := store.Get(context.Background(), "CP-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	client.values["smartcharging:profile:CP-2"] = "not json"
	if _, err := store.Get(context.Background(), "CP-2"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}

	client.getErr = errors.New("connection refused")
	if _, err := store.Get(context.Background(), "CP-1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
