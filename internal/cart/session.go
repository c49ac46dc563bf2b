package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cartKeyPrefix = "cart:table:%s"

// Stored sessions live slightly longer than the activity window so an
// expired cart can still be found and discarded explicitly on load.
const sessionKeyTTL = SessionTimeout + 5*time.Minute

// KV is the persistent key-value store used for cart rehydration,
// scoped by a table-derived key.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// RedisKV implements KV on a Redis client.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps the given client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// MemoryKV is an in-process KV for tests and single-node dev setups.
type MemoryKV struct {
	data map[string]string
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Remove(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// Manager persists carts across page reloads and recovers them on
// table scan. An expired stored cart is discarded before it is ever
// exposed, never silently served as valid.
type Manager struct {
	kv KV

	// Clock is injected for tests; nil means time.Now.
	Clock func() time.Time
}

// NewManager creates a Manager over the given KV.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

func cartKey(tableID string) string {
	return fmt.Sprintf(cartKeyPrefix, tableID)
}

// Load rehydrates the stored cart for a table. Returns nil when there
// is no stored cart or the stored one had already expired (in which
// case it is removed).
func (m *Manager) Load(ctx context.Context, tableID string) (*Cart, error) {
	raw, ok, err := m.kv.Get(ctx, cartKey(tableID))
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		// A corrupt session is unrecoverable; drop it.
		_ = m.kv.Remove(ctx, cartKey(tableID))
		return nil, nil
	}
	c.Clock = m.Clock
	if c.Expired() {
		_ = m.kv.Remove(ctx, cartKey(tableID))
		return nil, nil
	}
	return &c, nil
}

// Save persists the cart under its table-derived key.
func (m *Manager) Save(ctx context.Context, c *Cart) error {
	if c.TableID == "" {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	return m.kv.Set(ctx, cartKey(c.TableID), string(raw), sessionKeyTTL)
}

// Remove deletes the stored cart for a table. Used on explicit clear,
// expiry, and successful checkout.
func (m *Manager) Remove(ctx context.Context, tableID string) error {
	return m.kv.Remove(ctx, cartKey(tableID))
}

// SwitchTable rebinds the cart to a freshly scanned table. If the
// table changed and the cart had contents, those are cleared; a stored,
// unexpired cart for the new table is recovered when one exists.
func (m *Manager) SwitchTable(ctx context.Context, c *Cart, newTableID string) (*Cart, error) {
	oldTableID := c.TableID
	if !c.SetTableID(newTableID) && oldTableID == newTableID {
		return c, nil
	}
	if oldTableID != "" && oldTableID != newTableID {
		_ = m.kv.Remove(ctx, cartKey(oldTableID))
	}

	recovered, err := m.Load(ctx, newTableID)
	if err != nil {
		return nil, err
	}
	if recovered != nil {
		return recovered, nil
	}
	return c, nil
}
