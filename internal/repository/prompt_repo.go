package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/graderbot/internal/models"
)

// CurrentPromptKey is the Redis key holding the saved prompt.
const CurrentPromptKey = "graderbot:prompt:current"

// ErrPromptNotFound is returned before any prompt has been saved.
var ErrPromptNotFound = errors.New("no prompt saved")

// PromptRepository stores the single prompt used by the generate flow.
type PromptRepository interface {
	Save(ctx context.Context, record models.PromptRecord) error
	Current(ctx context.Context) (models.PromptRecord, error)
}

type redisPromptRepository struct {
	client *redis.Client
	key    string
}

// NewRedisPromptRepository stores the prompt under CurrentPromptKey.
func NewRedisPromptRepository(client *redis.Client) PromptRepository {
	return &redisPromptRepository{client: client, key: CurrentPromptKey}
}

func (r *redisPromptRepository) Save(ctx context.Context, record models.PromptRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("store prompt: %w", err)
	}
	return nil
}

func (r *redisPromptRepository) Current(ctx context.Context) (models.PromptRecord, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PromptRecord{}, ErrPromptNotFound
	}
	if err != nil {
		return models.PromptRecord{}, fmt.Errorf("load prompt: %w", err)
	}

	var record models.PromptRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return models.PromptRecord{}, fmt.Errorf("decode prompt: %w", err)
	}
	return record, nil
}

type memoryPromptRepository struct {
	mu     sync.RWMutex
	record *models.PromptRecord
}

// NewMemoryPromptRepository keeps the prompt in process memory.
func NewMemoryPromptRepository() PromptRepository {
	return &memoryPromptRepository{}
}

func (r *memoryPromptRepository) Save(_ context.Context, record models.PromptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record = &record
	return nil
}

func (r *memoryPromptRepository) Current(context.Context) (models.PromptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.record == nil {
		return models.PromptRecord{}, ErrPromptNotFound
	}
	return *r.record, nil
}
