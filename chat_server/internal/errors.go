package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshake 在进入 Active 状态前读取昵称失败（EOF、读错误、空昵称或直接退出）
	ErrHandshake = errors.New("昵称握手失败")

	// ErrConnClosed 连接已关闭，消息无法再投递
	ErrConnClosed = errors.New("连接已关闭")

	// ErrOutboxFull 接收方发送队列已满（慢消费者）
	ErrOutboxFull = errors.New("发送队列已满")

	// ErrServerClosed 服务器已经关闭
	ErrServerClosed = errors.New("服务器已关闭")
)

// BindError 监听端口失败，服务器无法启动
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("监听 %s 失败: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }
