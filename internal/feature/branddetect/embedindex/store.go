package embedindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store は構築済みインデックスをカタログバージョンをキーにRedisへ
// キャッシュします。埋め込み計算は高価でインデックス参照は安価なため、
// 再構築は明示的な操作に限定し、起動時はキャッシュを優先します。
//
// Redisが構成されていない場合（rdb == nil）は常にキャッシュミスとして
// 振る舞い、保存は何もしません。
type Store struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewStore は新しいStoreを生成します。
// ttlが0以下の場合は無期限、namespaceが空の場合は"brandindex"を使用します。
func NewStore(rdb *redis.Client, ttl time.Duration, namespace string) *Store {
	if namespace == "" {
		namespace = "brandindex"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Store{rdb: rdb, ttl: ttl, namespace: namespace}
}

func (s *Store) key(version string) string {
	return s.namespace + ":" + version
}

// Load はカタログバージョンに対応するキャッシュ済みインデックスを返します。
// キャッシュ不在・バージョン不一致・破損はすべて（nil, false, nil）で、
// 呼び出し側の再構築を促します。
func (s *Store) Load(ctx context.Context, version string) (*Index, bool, error) {
	if s.rdb == nil {
		return nil, false, nil
	}

	b, err := s.rdb.Get(ctx, s.key(version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load embedding index cache: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		// 破損エントリは削除して再構築に回す
		slog.Warn("埋め込みインデックスキャッシュが破損しているため破棄します", "error", err)
		_ = s.rdb.Del(ctx, s.key(version)).Err()
		return nil, false, nil
	}

	slog.Info("埋め込みインデックスをキャッシュからロードしました", "brands", idx.Len(), "version", version[:12])
	return &idx, true, nil
}

// Save はインデックスをキャッシュへ保存します。ベストエフォートで、
// 失敗してもインデックス自体の利用は妨げません。
func (s *Store) Save(ctx context.Context, version string, idx *Index) {
	if s.rdb == nil || idx == nil {
		return
	}

	b, err := json.Marshal(idx)
	if err != nil {
		slog.Warn("埋め込みインデックスのエンコードに失敗", "error", err)
		return
	}
	if err := s.rdb.Set(ctx, s.key(version), b, s.ttl).Err(); err != nil {
		slog.Warn("埋め込みインデックスキャッシュの保存に失敗", "error", err)
	}
}
