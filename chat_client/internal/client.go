package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"LineChat/tools"
)

// ErrDisconnected 与服务器的连接中断
var ErrDisconnected = errors.New("与服务器断开连接")

// Client 表示一个聊天客户端，用于与服务器通信。
type Client struct {
	conn        net.Conn          // 客户端到服务器的网络连接
	reader      *tools.LineReader // 服务器方向的行读取器
	done        chan struct{}     // 通知所有goroutine退出的信号通道
	isConnected int32             // 1=连接中，0=未连接
	quitTokens  []string
	dialTimeout time.Duration
	logger      *slog.Logger

	errMu sync.Mutex
	err   error // 触发关闭的原因
}

// Option 客户端可选项
type Option func(*Client)

// WithLogger 指定诊断日志输出
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialTimeout 指定连接超时
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithQuitTokens 指定退出口令
func WithQuitTokens(tokens ...string) Option {
	return func(c *Client) {
		if len(tokens) > 0 {
			c.quitTokens = tokens
		}
	}
}

// NewClient 创建一个新的客户端实例
func NewClient(opts ...Option) *Client {
	c := &Client{
		done:        make(chan struct{}),
		quitTokens:  tools.QuitTokens,
		dialTimeout: 5 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect 尝试建立到指定地址的TCP连接，addr 格式如 "host:port"
func (c *Client) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("连接 %s 失败: %w", addr, err)
	}
	c.attach(conn)
	return nil
}

func (c *Client) attach(conn net.Conn) {
	c.conn = conn
	c.reader = tools.NewLineReader(conn)
	atomic.StoreInt32(&c.isConnected, 1)
}

// Done 客户端关闭后关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// Shutdown 关闭客户端，可重复调用
func (c *Client) Shutdown() {
	c.cleanup(nil)
}

// cleanup 清理客户端占用的所有资源。
// 只有第一次调用生效：记录原因、关闭done通道、关闭网络连接让阻塞中的读取返回。
func (c *Client) cleanup(cause error) {
	if !atomic.CompareAndSwapInt32(&c.isConnected, 1, 0) {
		return
	}
	c.errMu.Lock()
	c.err = cause
	c.errMu.Unlock()

	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
	if cause != nil {
		c.logger.Warn("连接异常", "error", cause)
	} else {
		c.logger.Debug("客户端已关闭")
	}
}

// cause 返回触发关闭的原因
func (c *Client) cause() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// isConnectedAtomic 判断当前客户端是否仍处于连接状态
func (c *Client) isConnectedAtomic() bool {
	return atomic.LoadInt32(&c.isConnected) == 1
}

// safeRecover 捕获协程中的panic并关闭客户端
func (c *Client) safeRecover(context string) {
	if r := recover(); r != nil {
		c.cleanup(fmt.Errorf("%s发生panic: %v", context, r))
	}
}
