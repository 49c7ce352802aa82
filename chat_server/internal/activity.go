package internal

import (
	"context"
	"log/slog"
	"sync"
)

// ActivityStore 用户活跃度存储（见 rdb.ActivityStore）
type ActivityStore interface {
	IncrUserAction(ctx context.Context, username string) error
	GetActivityRank(ctx context.Context, count int64) ([]string, error)
	Close() error
}

const (
	activityBuffer = 256
	rankSize       = 10
)

// activityTracker 异步记录用户发言次数，处理协程只做非阻塞入队
type activityTracker struct {
	store   ActivityStore
	logger  *slog.Logger
	events  chan string
	done    chan struct{}
	mu      sync.RWMutex
	stopped bool
}

func newActivityTracker(store ActivityStore, logger *slog.Logger) *activityTracker {
	a := &activityTracker{
		store:  store,
		logger: logger,
		events: make(chan string, activityBuffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Record 记录一次发言。队列满或已停止时直接丢弃。
func (a *activityTracker) Record(username string) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		return
	}
	select {
	case a.events <- username:
	default:
		a.logger.Debug("活跃度队列已满，丢弃", "nickname", username)
	}
}

func (a *activityTracker) run() {
	defer close(a.done)
	for name := range a.events {
		if err := a.store.IncrUserAction(context.Background(), name); err != nil {
			a.logger.Warn("增加用户活跃度失败", "nickname", name, "error", err)
		}
	}
}

// Stop 处理完剩余记录，返回排行榜并关闭存储。可重复调用。
func (a *activityTracker) Stop(ctx context.Context) []string {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.events)
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
	}

	rank, err := a.store.GetActivityRank(ctx, rankSize)
	if err != nil {
		a.logger.Warn("获取活跃度排名失败", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("关闭活跃度存储失败", "error", err)
	}
	return rank
}
