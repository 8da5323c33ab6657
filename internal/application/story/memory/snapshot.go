package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"z-ebook-api/internal/domain/entity"
)

// KVCache 快照缓存的最小依赖
type KVCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const DefaultSnapshotTTL = time.Hour

// Snapshot 某本书当前的记忆视图
type Snapshot struct {
	Outline   *entity.StoryOutline     `json:"outline,omitempty"`
	State     *entity.StoryState       `json:"state,omitempty"`
	Summaries []*entity.ChapterSummary `json:"summaries"`
}

// SnapshotStore 以生成记录为键缓存最新快照，供运行中的进度查询使用
type SnapshotStore struct {
	cache KVCache
	ttl   time.Duration
}

func NewSnapshotStore(cache KVCache, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotStore{cache: cache, ttl: ttl}
}

// Load 读取快照；未命中返回 nil, nil
func (s *SnapshotStore) Load(ctx context.Context, generationID string) (*Snapshot, error) {
	if s == nil || s.cache == nil || strings.TrimSpace(generationID) == "" {
		return nil, nil
	}
	b, err := s.cache.Get(ctx, snapshotKey(generationID))
	if err != nil || len(b) == 0 {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode memory snapshot: %w", err)
	}
	return &snap, nil
}

// Save 覆盖写入快照
func (s *SnapshotStore) Save(ctx context.Context, generationID string, snap *Snapshot) error {
	if s == nil || s.cache == nil || snap == nil {
		return nil
	}
	return s.cache.Set(ctx, snapshotKey(generationID), snap, s.ttl)
}

// Invalidate 删除快照
func (s *SnapshotStore) Invalidate(ctx context.Context, generationID string) error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, snapshotKey(generationID))
}

func snapshotKey(generationID string) string {
	return fmt.Sprintf("mem:%s:snapshot", generationID)
}
