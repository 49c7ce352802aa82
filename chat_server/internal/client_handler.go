package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"LineChat/tools"
)

// Handler 驱动单个连接的协议状态机：
// Connecting → AwaitingNickname → Active → Closing → Closed
type Handler struct {
	conn       *Connection
	registry   *Registry
	router     *Router
	activity   *activityTracker
	quitTokens []string
	logger     *slog.Logger

	state    atomic.Int32
	nickname string // 仅在到达 StateActive 后有效
	joined   bool
}

// NewHandler 为一个新连接创建处理器
func NewHandler(conn *Connection, registry *Registry, router *Router, quitTokens []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(quitTokens) == 0 {
		quitTokens = tools.QuitTokens
	}
	h := &Handler{
		conn:       conn,
		registry:   registry,
		router:     router,
		quitTokens: quitTokens,
		logger:     logger.With("conn_id", conn.ID(), "remote", conn.RemoteAddr()),
	}
	h.setState(StateConnecting)
	return h
}

// State 当前状态
func (h *Handler) State() State { return State(h.state.Load()) }

func (h *Handler) setState(s State) { h.state.Store(int32(s)) }

// Serve 运行状态机直到连接结束，返回时连接已关闭并已移出连接表
func (h *Handler) Serve() {
	defer h.finish()

	h.setState(StateAwaitingNickname)
	if err := h.conn.Send(PromptNickname); err != nil {
		h.logger.Debug("发送昵称提示失败", "error", err)
		return
	}

	nickname, err := h.handshake()
	if err != nil {
		h.logger.Info("连接在握手阶段断开", "error", err)
		return
	}

	h.nickname = nickname
	h.registry.Add(h.conn)
	h.joined = true
	h.setState(StateActive)
	h.logger = h.logger.With("nickname", nickname)
	h.logger.Info("用户已连接")
	h.router.BroadcastExcept(JoinNotice(nickname), h.conn.ID())

	h.handleClientChat()
}

// handshake 读取第一行作为昵称
func (h *Handler) handshake() (string, error) {
	name, err := h.conn.ReadLine()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if name == "" {
		return "", fmt.Errorf("%w: 昵称为空", ErrHandshake)
	}
	if tools.IsQuit(name, h.quitTokens) {
		return "", fmt.Errorf("%w: 收到退出口令", ErrHandshake)
	}
	return name, nil
}

// handleClientChat Active 状态下逐行读取并广播
func (h *Handler) handleClientChat() {
	for {
		line, err := h.conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				h.logger.Info("对端关闭连接")
			} else {
				h.logger.Info("读取失败，断开连接", "error", err)
			}
			return
		}

		if tools.IsQuit(line, h.quitTokens) {
			h.logger.Info("用户主动退出")
			_ = h.conn.Send(line)
			return
		}

		h.logger.Debug("收到消息", "message", line)
		h.activity.Record(h.nickname)
		h.router.Broadcast(ChatLine(h.nickname, line), h.conn.ID())
	}
}

// finish Closing → Closed。离开通知只在到达过 Active 时发送。
func (h *Handler) finish() {
	h.setState(StateClosing)
	if h.joined {
		h.registry.Remove(h.conn.ID())
		h.router.BroadcastAll(LeaveNotice(h.nickname))
		h.logger.Info("用户已断开")
	}
	h.conn.Close()
	h.setState(StateClosed)
}
