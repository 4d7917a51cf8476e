package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"fluxbatch/internal/domain"
)

const (
	galleryKey    = "gallery:entries"
	promptsKey    = "prompts:history"
	credentialKey = "credentials:replicate"
)

// RedisGallery persists gallery entries as a Redis list, newest first.
// LPUSH + LTRIM keeps the list bounded on every insert.
type RedisGallery struct {
	client *redis.Client
	max    int
}

func NewRedisGallery(client *redis.Client, max int) *RedisGallery {
	if max <= 0 {
		max = DefaultMaxGalleryEntries
	}
	return &RedisGallery{client: client, max: max}
}

func (g *RedisGallery) Add(ctx context.Context, entry domain.GalleryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode gallery entry: %w", err)
	}
	pipe := g.client.TxPipeline()
	pipe.LPush(ctx, galleryKey, data)
	pipe.LTrim(ctx, galleryKey, 0, int64(g.max)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push gallery entry: %w", err)
	}
	return nil
}

func (g *RedisGallery) List(ctx context.Context) ([]domain.GalleryEntry, error) {
	raw, err := g.client.LRange(ctx, galleryKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list gallery entries: %w", err)
	}
	entries := make([]domain.GalleryEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.GalleryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove rewrites the list without the matching entry. Entries are immutable
// JSON blobs, so the whole value is the removal key.
func (g *RedisGallery) Remove(ctx context.Context, id string) error {
	raw, err := g.client.LRange(ctx, galleryKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list gallery entries: %w", err)
	}
	for _, item := range raw {
		var entry domain.GalleryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if entry.ID == id {
			if err := g.client.LRem(ctx, galleryKey, 1, item).Err(); err != nil {
				return fmt.Errorf("remove gallery entry: %w", err)
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (g *RedisGallery) Clear(ctx context.Context) error {
	if err := g.client.Del(ctx, galleryKey).Err(); err != nil {
		return fmt.Errorf("clear gallery: %w", err)
	}
	return nil
}

func (g *RedisGallery) Stats(ctx context.Context) (domain.GalleryStats, error) {
	entries, err := g.List(ctx)
	if err != nil {
		return domain.GalleryStats{}, err
	}
	return statsOf(entries, g.max), nil
}

// RedisPrompts persists the prompt history as a Redis list. LREM before
// LPUSH implements dedup move-to-front.
type RedisPrompts struct {
	client *redis.Client
	max    int
}

func NewRedisPrompts(client *redis.Client, max int) *RedisPrompts {
	if max <= 0 {
		max = DefaultMaxPrompts
	}
	return &RedisPrompts{client: client, max: max}
}

func (p *RedisPrompts) Save(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	pipe := p.client.TxPipeline()
	pipe.LRem(ctx, promptsKey, 0, prompt)
	pipe.LPush(ctx, promptsKey, prompt)
	pipe.LTrim(ctx, promptsKey, 0, int64(p.max)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save prompt: %w", err)
	}
	return nil
}

func (p *RedisPrompts) List(ctx context.Context) ([]string, error) {
	prompts, err := p.client.LRange(ctx, promptsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return prompts, nil
}

func (p *RedisPrompts) Last(ctx context.Context) (string, error) {
	prompt, err := p.client.LIndex(ctx, promptsKey, 0).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last prompt: %w", err)
	}
	return prompt, nil
}

func (p *RedisPrompts) Clear(ctx context.Context) error {
	if err := p.client.Del(ctx, promptsKey).Err(); err != nil {
		return fmt.Errorf("clear prompts: %w", err)
	}
	return nil
}

// RedisCredentials persists the provider token under a single key.
type RedisCredentials struct {
	client *redis.Client
}

func NewRedisCredentials(client *redis.Client) *RedisCredentials {
	return &RedisCredentials{client: client}
}

func (c *RedisCredentials) Token(ctx context.Context) (string, error) {
	token, err := c.client.Get(ctx, credentialKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return strings.TrimSpace(token), nil
}

func (c *RedisCredentials) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("replicate api token is required")
	}
	if err := c.client.Set(ctx, credentialKey, token, 0).Err(); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}
