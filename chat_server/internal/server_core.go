package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Server 聊天服务器。持有监听套接字、在线连接表以及所有处理协程。
type Server struct {
	cfg      Config
	logger   *slog.Logger
	instance string
	registry *Registry
	router   *Router
	store    ActivityStore
	activity *activityTracker

	mu       sync.Mutex
	listener net.Listener
	sessions map[ConnID]*Connection // 所有已接受的连接，包括尚未完成握手的
	handlers sync.WaitGroup

	done         atomic.Bool
	shutdownOnce sync.Once
	closed       chan struct{}
}

// Option 服务器可选项
type Option func(*Server)

// WithLogger 指定日志输出
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInstanceID 指定服务器实例标识（默认随机 UUID）
func WithInstanceID(id string) Option {
	return func(s *Server) {
		if id != "" {
			s.instance = id
		}
	}
}

// WithActivityStore 启用用户活跃度统计
func WithActivityStore(store ActivityStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// NewServer 创建服务器实例。cfg 为 nil 时使用默认配置。
func NewServer(cfg *Config, opts ...Option) *Server {
	c := defaultConfig()
	if cfg != nil {
		c = sanitizeConfig(*cfg)
	}
	s := &Server{
		cfg:      c,
		logger:   slog.Default(),
		instance: uuid.NewString(),
		registry: NewRegistry(),
		sessions: make(map[ConnID]*Connection),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("instance", s.instance)
	if s.store != nil {
		s.activity = newActivityTracker(s.store, s.logger)
	}
	s.router = NewRouter(s.registry, s.logger, c.EchoToSender)
	return s
}

// Registry 在线连接表
func (s *Server) Registry() *Registry { return s.registry }

// Router 广播器
func (s *Server) Router() *Router { return s.router }

// Done 服务器完全关闭后关闭
func (s *Server) Done() <-chan struct{} { return s.closed }

// Addr 实际监听地址，未监听时返回 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen 绑定监听地址，失败返回 *BindError
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done.Load() {
		ln.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		ln.Close()
		return fmt.Errorf("服务器已在监听 %s", s.listener.Addr())
	}
	s.listener = ln
	s.logger.Info("服务器已启动", "addr", ln.Addr().String())
	return nil
}

// Start 监听 addr 并运行接受循环，直到服务器关闭
func (s *Server) Start(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Serve 接受循环。关闭后返回 nil；监听套接字出错时关闭服务器并返回错误。
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("服务器尚未监听")
	}

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.done.Load() {
				return nil
			}
			var te interface{ Temporary() bool }
			if errors.As(err, &te) && te.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.logger.Warn("接受连接失败，稍后重试", "error", err, "retry_in", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			s.logger.Error("监听套接字异常，服务器关闭", "error", err)
			s.Shutdown()
			return fmt.Errorf("接受连接失败: %w", err)
		}
		tempDelay = 0
		s.dispatch(conn)
	}
}

// dispatch 为新连接启动处理协程，不阻塞接受循环
func (s *Server) dispatch(conn net.Conn) {
	c := NewConnection(nextConnID(), conn, s.cfg)

	s.mu.Lock()
	if s.done.Load() {
		s.mu.Unlock()
		c.Abort()
		return
	}
	s.sessions[c.ID()] = c
	s.handlers.Add(1)
	s.mu.Unlock()

	s.logger.Debug("接受新连接", "conn_id", c.ID(), "remote", c.RemoteAddr())

	h := NewHandler(c, s.registry, s.router, s.cfg.QuitTokens, s.logger)
	h.activity = s.activity
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.sessions, c.ID())
			s.mu.Unlock()
			s.handlers.Done()
		}()
		h.Serve()
	}()
}

// Shutdown 关闭服务器：停止接受、通知并关闭所有连接、等待处理协程退出。
// 可重复调用，也可以在信号处理或接受循环中调用。
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.done.Store(true)
		ln := s.listener
		sessions := make([]*Connection, 0, len(s.sessions))
		for _, c := range s.sessions {
			sessions = append(sessions, c)
		}
		s.mu.Unlock()

		s.logger.Info("正在关闭服务器...", "sessions", len(sessions))
		if ln != nil {
			ln.Close()
		}

		s.router.Stop()
		for _, c := range sessions {
			if _, ok := s.registry.Get(c.ID()); ok {
				_ = c.Send(ShutdownNotice)
			}
			go c.Close()
		}

		finished := make(chan struct{})
		go func() {
			s.handlers.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(s.cfg.ShutdownTimeout):
			s.logger.Warn("等待连接处理协程超时", "timeout", s.cfg.ShutdownTimeout)
		}

		if s.activity != nil {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			rank := s.activity.Stop(ctx)
			cancel()
			for _, line := range rank {
				s.logger.Info("活跃度排名", "rank", line)
			}
		}

		s.logger.Info("服务器已关闭")
		close(s.closed)
	})
}
