package internal

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"LineChat/tools"
)

// RedisConfig 活跃度统计使用的 Redis 连接参数。Addr 为空时不启用。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 服务器配置
type Config struct {
	Host            string
	Port            int
	OutboxSize      int           // 每个连接的发送队列长度
	WriteTimeout    time.Duration // 单行写入与关闭前刷新的超时
	ReadTimeout     time.Duration // 空闲读超时，0 表示不限制
	ShutdownTimeout time.Duration // 关闭时等待处理协程退出的时间
	EchoToSender    bool          // 聊天消息是否也发回给发送者
	QuitTokens      []string
	Redis           RedisConfig
	LogLevel        slog.Level
}

func defaultConfig() Config {
	return Config{
		Port:            8080,
		OutboxSize:      64,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		QuitTokens:      append([]string(nil), tools.QuitTokens...),
		LogLevel:        slog.LevelInfo,
	}
}

// NewConfig 返回默认配置
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv 从环境变量读取配置，未设置或非法的值使用默认值
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if host := os.Getenv("CHAT_HOST"); host != "" {
		cfg.Host = host
	}
	cfg.Port = parseIntValue(os.Getenv("CHAT_PORT"), cfg.Port)
	cfg.OutboxSize = parseIntValue(os.Getenv("CHAT_OUTBOX_SIZE"), cfg.OutboxSize)
	cfg.WriteTimeout = parseSeconds(os.Getenv("CHAT_WRITE_TIMEOUT"), cfg.WriteTimeout)
	cfg.ReadTimeout = parseSeconds(os.Getenv("CHAT_READ_TIMEOUT"), cfg.ReadTimeout)
	cfg.ShutdownTimeout = parseSeconds(os.Getenv("CHAT_SHUTDOWN_TIMEOUT"), cfg.ShutdownTimeout)
	if echo, err := strconv.ParseBool(os.Getenv("CHAT_ECHO_TO_SENDER")); err == nil {
		cfg.EchoToSender = echo
	}

	cfg.Redis.Addr = os.Getenv("CHAT_REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("CHAT_REDIS_PASSWORD")
	if db, err := strconv.Atoi(os.Getenv("CHAT_REDIS_DB")); err == nil && db >= 0 {
		cfg.Redis.DB = db
	}

	cfg.LogLevel = tools.ParseLogLevel(os.Getenv("CHAT_LOG_LEVEL"), cfg.LogLevel)

	sanitized := sanitizeConfig(cfg)
	return &sanitized
}

// sanitizeConfig 修正非法的配置项
func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()
	if cfg.Port < 0 || cfg.Port > 65535 {
		cfg.Port = def.Port
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = def.OutboxSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout < 0 {
		cfg.ReadTimeout = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if len(cfg.QuitTokens) == 0 {
		cfg.QuitTokens = def.QuitTokens
	}
	return cfg
}

// Addr 监听地址 host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
