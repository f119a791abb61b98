package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	data        map[string]string
	expireCalls []string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = toString(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if val, ok := m.data[key]; ok {
		cmd.SetVal(val)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := m.data[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	m.data[key] = toString(value)
	cmd.SetVal(true)
	return cmd
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	m.data[key] += "x"
	cmd.SetVal(int64(len(m.data[key])))
	return cmd
}

func (m *mockCmdable) Expire(ctx context.Context, key string, _ time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, key)
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return "value"
}

func TestSetNXGuardsDuplicates(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	key := client.IdempotencyKey("lots", "abc123")
	ok, err := client.SetNX(ctx, key, "in_flight", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first SetNX to win")
	}

	ok, err = client.SetNX(ctx, key, "in_flight", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second SetNX to lose")
	}
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	client := &Client{}
	key := client.IdempotencyKey("lots", "abc")
	if key != "lk:idempotency:lots:abc" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if _, err := client.Get(context.Background(), "anything"); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error from uninitialized client")
	}
}
