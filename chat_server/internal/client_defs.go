package internal

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// 协议文本，与原有客户端保持一致
const (
	PromptNickname = "Ingrese un nombre de usuario: "
	ShutdownNotice = "Servidor cerrando, conexión terminada"
)

// ConnID 连接标识。由单调递增序列生成，进程生命周期内不会复用。
type ConnID uint64

func (id ConnID) String() string { return strconv.FormatUint(uint64(id), 10) }

// NoOrigin 不属于任何连接的来源（系统消息）
const NoOrigin ConnID = 0

var connSeq atomic.Uint64

// nextConnID 分配下一个连接标识，从 1 开始
func nextConnID() ConnID {
	return ConnID(connSeq.Add(1))
}

// State 连接处理器的状态
type State int32

const (
	StateConnecting State = iota
	StateAwaitingNickname
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingNickname:
		return "awaiting-nickname"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// JoinNotice 用户加入通知
func JoinNotice(nickname string) string {
	return fmt.Sprintf("%s se ha unido al chat!", nickname)
}

// LeaveNotice 用户离开通知
func LeaveNotice(nickname string) string {
	return fmt.Sprintf("El usuario %s abandonó", nickname)
}

// ChatLine 普通聊天消息
func ChatLine(nickname, message string) string {
	return fmt.Sprintf("%s: %s", nickname, message)
}
