package tools

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// MaxLineSize 单行消息的最大字节数（超过则视为读取错误）
const MaxLineSize = 64 * 1024

// ErrLineTooLong 对端发送的单行超过 MaxLineSize
var ErrLineTooLong = errors.New("tools: line too long")

// QuitTokens 会话结束口令（大小写不敏感）
var QuitTokens = []string{"chao", "quit"}

// SendMessage 发送一行文本（以换行结尾）。
// 整行通过一次 Write 调用写出，避免并发写入时出现半行交错。
func SendMessage(w io.Writer, message string) error {
	line := strings.TrimRight(message, "\r\n") + "\n"
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}
	return nil
}

// LineReader 按行读取连接数据。
// 同一个连接必须复用同一个 LineReader，否则缓冲区里的数据会丢失。
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader 包装一个 io.Reader
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// ReceiveMessage 读取一行，去掉结尾的 "\n" 和 "\r"。
// 对端关闭时返回 io.EOF；最后一行没有换行符时仍然返回该行内容。
func (lr *LineReader) ReceiveMessage() (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		if sb.Len()+len(chunk) > MaxLineSize {
			return "", ErrLineTooLong
		}
		sb.Write(chunk)
		if !isPrefix {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
	}
}

// IsQuit 判断一行是否为退出口令（整行比较，大小写不敏感，不去除空白）
func IsQuit(line string, tokens []string) bool {
	for _, t := range tokens {
		if strings.EqualFold(line, t) {
			return true
		}
	}
	return false
}

// ParseLogLevel 解析 CHAT_LOG_LEVEL 形式的日志级别，无法识别时返回 defaultLevel
func ParseLogLevel(value string, defaultLevel slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// PrintMessage 打印消息
func PrintMessage(w io.Writer, prefix, msg string) error {
	_, err := fmt.Fprintf(w, "%s%s\n", prefix, msg)
	return err
}
