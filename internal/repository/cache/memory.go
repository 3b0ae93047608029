package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoryConfig описывает параметры in-process кэша
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	DefaultTTL         time.Duration
	MaxTTL             time.Duration // верхняя граница TTL для одной записи
	EvictionPercentage int
}

// Validate проверяет, что параметры пригодны для sturdyc
func (c MemoryConfig) Validate() error {
	switch {
	case c.Capacity <= 0:
		return errors.New("cache capacity must be greater than 0")
	case c.NumShards <= 0:
		return errors.New("cache shards must be greater than 0")
	case c.DefaultTTL <= 0:
		return errors.New("cache default ttl must be greater than 0")
	case c.MaxTTL < c.DefaultTTL:
		return errors.New("cache max ttl must not be less than default ttl")
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return errors.New("cache eviction percentage must be between 1 and 100")
	}
	return nil
}

// entry хранит значение вместе с собственным сроком жизни,
// потому что sturdyc держит один TTL на весь клиент
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory реализует потокобезопасный in-memory кэш с TTL на каждую запись
type Memory struct {
	client     *sturdyc.Client[entry]
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
}

// NewMemory создаёт новый экземпляр кэша
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](cfg.Capacity, cfg.NumShards, cfg.MaxTTL, cfg.EvictionPercentage)

	return &Memory{
		client:     client,
		defaultTTL: cfg.DefaultTTL,
		maxTTL:     cfg.MaxTTL,
		now:        time.Now,
	}, nil
}

// Get возвращает значение и true, если запись есть и не истекла
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.client.Delete(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set кладёт значение в кэш; ttl <= 0 означает TTL по умолчанию,
// ttl больше MaxTTL обрезается до MaxTTL
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > m.maxTTL {
		ttl = m.maxTTL
	}

	m.client.Set(key, entry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

// Delete удаляет запись по точному ключу
func (m *Memory) Delete(_ context.Context, key string) error {
	m.client.Delete(key)
	return nil
}

// DeletePrefix удаляет все записи пространства имён, перебирая ключи кэша
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	for _, key := range m.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			m.client.Delete(key)
		}
	}
	return nil
}

// Size возвращает количество записей (включая ещё не вычищенные истёкшие)
func (m *Memory) Size() int {
	return m.client.Size()
}
