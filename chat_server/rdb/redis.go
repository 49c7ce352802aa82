package rdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// ChatRankKey 用户活跃度排名键名前缀，实际键名为 "<前缀>:<实例标识>"
	ChatRankKey = "chat_activity_rank"

	// DefaultRankTTL 排名键的过期时间，服务器异常退出时也不会长期残留
	DefaultRankTTL = 24 * time.Hour
)

var errNotInitialized = errors.New("redis 活跃度客户端未初始化")

// ActivityStore 基于 Redis 有序集合的用户活跃度计数
type ActivityStore struct {
	Client  *redis.Client
	RankKey string
	TTL     time.Duration
}

// RankKeyFor 返回实例对应的排名键名
func RankKeyFor(instance string) string {
	if instance == "" {
		return ChatRankKey
	}
	return ChatRankKey + ":" + instance
}

// NewActivityStore 连接 Redis 并校验连通性。
// 连接失败时返回错误，调用方可以选择不启用活跃度统计。
func NewActivityStore(ctx context.Context, addr, password string, db int, instance string) (*ActivityStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	return &ActivityStore{
		Client:  client,
		RankKey: RankKeyFor(instance),
		TTL:     DefaultRankTTL,
	}, nil
}

// IncrUserAction 用户活跃度加一，并刷新键的过期时间
func (s *ActivityStore) IncrUserAction(ctx context.Context, username string) error {
	if s == nil || s.Client == nil {
		return errNotInitialized
	}
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, s.RankKey, 1, username)
		if s.TTL > 0 {
			pipe.Expire(ctx, s.RankKey, s.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("增加用户活跃度失败: %w", err)
	}
	return nil
}

// GetActivityRank 获取前 count 名，格式为 "Rank X: 昵称 (消息数: Y)"
func (s *ActivityStore) GetActivityRank(ctx context.Context, count int64) ([]string, error) {
	if s == nil || s.Client == nil {
		return nil, errNotInitialized
	}
	if count <= 0 {
		return []string{}, nil
	}
	results, err := s.Client.ZRevRangeWithScores(ctx, s.RankKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("获取活跃度排名失败: %w", err)
	}
	return FormatRank(results), nil
}

// FormatRank 将有序集合结果格式化为可读字符串
func FormatRank(results []redis.Z) []string {
	rankList := make([]string, 0, len(results))
	for i, z := range results {
		rankList = append(rankList, fmt.Sprintf("Rank %d: %v (消息数: %d)", i+1, z.Member, int64(z.Score)))
	}
	return rankList
}

// Close 删除本实例的排名数据并关闭连接
func (s *ActivityStore) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	delErr := s.Client.Del(ctx, s.RankKey).Err()
	closeErr := s.Client.Close()
	return errors.Join(delErr, closeErr)
}
