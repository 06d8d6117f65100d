package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/linkbridge/internal/model"
)

// mappingKeyPrefix はRedis上のマッピングキーのプレフィックス。
// キーは link:discord:<discord_id>、値はuser_idとlinked_atのハッシュ。
const mappingKeyPrefix = "link:discord:"

// RedisMappingRepo はRedisを使用した逆引きマッピングリポジトリ。
// Botはこのキー空間を直接読むため、キーレイアウトは互換性契約の一部。
type RedisMappingRepo struct {
	client *redis.Client
}

// NewRedisMappingRepo はRedisMappingRepoを生成する。
func NewRedisMappingRepo(client *redis.Client) *RedisMappingRepo {
	return &RedisMappingRepo{client: client}
}

// Upsert はマッピングを作成または上書きする（last-write-wins）。
func (r *RedisMappingRepo) Upsert(ctx context.Context, mapping *model.LinkMapping) error {
	key := mappingKeyPrefix + mapping.DiscordID
	err := r.client.HSet(ctx, key,
		"user_id", mapping.UserID,
		"linked_at", mapping.LinkedAt.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to upsert link mapping: %w", err)
	}
	return nil
}

// Lookup はdiscord_idに対応するマッピングを取得する。見つからない場合はnilを返す。
func (r *RedisMappingRepo) Lookup(ctx context.Context, discordID string) (*model.LinkMapping, error) {
	key := mappingKeyPrefix + discordID
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to lookup link mapping: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	mapping := &model.LinkMapping{
		DiscordID: discordID,
		UserID:    fields["user_id"],
	}
	if raw, ok := fields["linked_at"]; ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			mapping.LinkedAt = ts
		}
	}

	return mapping, nil
}

// compile-time interface check
var _ MappingRepository = (*RedisMappingRepo)(nil)
