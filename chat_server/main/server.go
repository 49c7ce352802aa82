package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"LineChat/chat_server/internal"
	"LineChat/chat_server/rdb"

	"github.com/google/uuid"
)

// main 读取环境变量配置，启动服务器，收到 SIGINT/SIGTERM 后关闭
func main() {
	cfg := internal.NewConfigFromEnv()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	instance := uuid.NewString()
	opts := []internal.Option{
		internal.WithLogger(logger),
		internal.WithInstanceID(instance),
	}
	if cfg.Redis.Addr != "" {
		store, err := rdb.NewActivityStore(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, instance)
		if err != nil {
			logger.Warn("活跃度统计不可用", "error", err)
		} else {
			opts = append(opts, internal.WithActivityStore(store))
		}
	}

	server := internal.NewServer(cfg, opts...)
	if err := server.Listen(cfg.Addr()); err != nil {
		var bindErr *internal.BindError
		if errors.As(err, &bindErr) {
			logger.Error("服务器启动失败", "addr", bindErr.Addr, "error", bindErr.Err)
		} else {
			logger.Error("服务器启动失败", "error", err)
		}
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("收到退出信号")
		server.Shutdown()
	}()

	err := server.Serve()
	<-server.Done()
	if err != nil {
		logger.Error("服务器异常退出", "error", err)
		os.Exit(1)
	}
}
