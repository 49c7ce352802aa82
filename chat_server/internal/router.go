package internal

import (
	"log/slog"
	"sync/atomic"
)

// Router 将消息广播给连接表中的成员
type Router struct {
	registry     *Registry
	logger       *slog.Logger
	echoToSender bool
	stopped      atomic.Bool
}

// NewRouter 创建广播器。echoToSender 为 true 时聊天消息也发回给发送者。
func NewRouter(registry *Registry, logger *slog.Logger, echoToSender bool) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, logger: logger, echoToSender: echoToSender}
}

// Broadcast 广播聊天消息：发给除 origin 以外的所有在线连接（开启 echoToSender 时也发给 origin），
// 返回成功入队的数量。单个接收者失败不会影响其他接收者，失败的连接会在广播结束后被清理。
func (r *Router) Broadcast(text string, origin ConnID) int {
	if r.echoToSender {
		return r.deliver(text, NoOrigin)
	}
	return r.deliver(text, origin)
}

// BroadcastExcept 发给除 origin 以外的所有在线连接，不受 echoToSender 影响
func (r *Router) BroadcastExcept(text string, origin ConnID) int {
	return r.deliver(text, origin)
}

// BroadcastAll 将 text 发给所有在线连接
func (r *Router) BroadcastAll(text string) int {
	return r.deliver(text, NoOrigin)
}

// Stop 之后的广播全部丢弃
func (r *Router) Stop() {
	r.stopped.Store(true)
}

func (r *Router) deliver(text string, origin ConnID) int {
	if r.stopped.Load() {
		return 0
	}

	var connsToCleanup []*Connection
	delivered := 0
	for _, c := range r.registry.Snapshot() {
		if origin != NoOrigin && c.ID() == origin {
			continue
		}
		if err := c.Send(text); err != nil {
			r.logger.Warn("发送消息失败，标记清理", "conn_id", c.ID(), "error", err)
			connsToCleanup = append(connsToCleanup, c)
			continue
		}
		delivered++
	}

	for _, c := range connsToCleanup {
		r.evict(c)
	}
	return delivered
}

// evict 移出连接表并中断套接字，所属处理协程会读到错误并完成收尾
func (r *Router) evict(c *Connection) {
	if r.registry.Remove(c.ID()) {
		r.logger.Info("连接已清理", "conn_id", c.ID(), "remote", c.RemoteAddr())
	}
	c.Abort()
}
