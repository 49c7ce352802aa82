package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"LineChat/chat_client/internal"
	"LineChat/tools"
)

const defaultServerAddr = "127.0.0.1:8080"

// main 连接服务器（地址取自 CHAT_SERVER_ADDR），在控制台与服务器之间转发消息
func main() {
	level := tools.ParseLogLevel(os.Getenv("CHAT_LOG_LEVEL"), slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	addr := os.Getenv("CHAT_SERVER_ADDR")
	if addr == "" {
		addr = defaultServerAddr
	}

	client := internal.NewClient(internal.WithLogger(logger))
	if err := client.Connect(addr); err != nil {
		logger.Error("连接失败，请确保服务器已启动", "addr", addr, "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			client.Shutdown()
		case <-client.Done():
		}
	}()

	if err := client.Run(os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
}
