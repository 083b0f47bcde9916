package redis

import (
	"context"
	"testing"
	"time"
)

func TestNewRedisClientRejectsEmptyAddr(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), Options{Addr: " "}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestClientOptions(t *testing.T) {
	opts := Options{Addr: " cache:6379 ", Password: "pw", DB: 3}.clientOptions()
	if opts.Addr != "cache:6379" || opts.Password != "pw" || opts.DB != 3 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.PoolSize != 4 || opts.DialTimeout != 5*time.Second || opts.ReadTimeout != 3*time.Second {
		t.Fatalf("unexpected defaults %+v", opts)
	}

	opts = Options{Addr: "cache:6379", PoolSize: 16, ReadTimeout: time.Second}.clientOptions()
	if opts.PoolSize != 16 || opts.ReadTimeout != time.Second {
		t.Fatalf("configured values not kept %+v", opts)
	}
}
