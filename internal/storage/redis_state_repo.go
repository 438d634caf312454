package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/burrow/internal/field"
	"github.com/annel0/burrow/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisStateRepo хранит снимки полей в Redis, по ключу на сущность
type RedisStateRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей; 0: бессрочно
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "burrow:field:",
	}
}

// NewRedisStateRepo подключается к Redis и проверяет соединение
func NewRedisStateRepo(cfg *RedisConfig) (*RedisStateRepo, error) {
	def := DefaultRedisConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("🔴 Connected to Redis at %s", cfg.Addr)
	return newRedisStateRepo(client, cfg.KeyPrefix, cfg.TTL), nil
}

func newRedisStateRepo(client *redis.Client, prefix string, ttl time.Duration) *RedisStateRepo {
	return &RedisStateRepo{client: client, keyPrefix: prefix, ttl: ttl}
}

func (r *RedisStateRepo) key(id uint64) string {
	return r.keyPrefix + strconv.FormatUint(id, 10)
}

// Save записывает строки одним пайплайном
func (r *RedisStateRepo) Save(ctx context.Context, rows []field.Snapshot) error {
	if len(rows) == 0 {
		return nil
	}
	if err := validate(rows); err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot %d: %w", row.ID, err)
		}
		pipe.Set(ctx, r.key(row.ID), data, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func (r *RedisStateRepo) Load(ctx context.Context, id uint64) (field.Snapshot, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return field.Snapshot{}, false, nil
	} else if err != nil {
		return field.Snapshot{}, false, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var row field.Snapshot
	if err := json.Unmarshal(data, &row); err != nil {
		return field.Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return row, true, nil
}

// LoadAll обходит ключи через SCAN и читает их пайплайном
func (r *RedisStateRepo) LoadAll(ctx context.Context) ([]field.Snapshot, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	if len(keys) == 0 {
		return []field.Snapshot{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}

	rows := make([]field.Snapshot, 0, len(keys))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			// Ключ мог истечь между SCAN и GET
			continue
		}
		var row field.Snapshot
		if err := json.Unmarshal(data, &row); err != nil {
			logging.Warn("⚠️ Failed to unmarshal snapshot %s: %v", strings.TrimPrefix(keys[i], r.keyPrefix), err)
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (r *RedisStateRepo) Delete(ctx context.Context, id uint64) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisStateRepo) Close() error {
	return r.client.Close()
}
