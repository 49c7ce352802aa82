package internal

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"LineChat/tools"
)

// Connection 封装一个已接受的 TCP 连接。
// 读操作只由所属的处理协程执行；写操作全部经过 outbox，由唯一的写协程逐行写出。
type Connection struct {
	id           ConnID
	conn         net.Conn
	reader       *tools.LineReader
	outbox       chan string
	readTimeout  time.Duration
	writeTimeout time.Duration

	alive      atomic.Bool
	quit       chan struct{} // 关闭后写协程刷新剩余消息并退出
	quitOnce   sync.Once
	closeOnce  sync.Once
	writerDone chan struct{}
}

// NewConnection 包装 conn 并启动写协程
func NewConnection(id ConnID, conn net.Conn, cfg Config) *Connection {
	c := &Connection{
		id:           id,
		conn:         conn,
		reader:       tools.NewLineReader(conn),
		outbox:       make(chan string, cfg.OutboxSize),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		quit:         make(chan struct{}),
		writerDone:   make(chan struct{}),
	}
	c.alive.Store(true)
	go c.writeLoop()
	return c
}

// ID 连接标识
func (c *Connection) ID() ConnID { return c.id }

// RemoteAddr 对端地址
func (c *Connection) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Alive 连接是否仍可投递
func (c *Connection) Alive() bool { return c.alive.Load() }

// Send 将一行放入发送队列。队列满时最多等待一个写超时，
// 仍然放不进去才返回 ErrOutboxFull；连接已关闭返回 ErrConnClosed。
func (c *Connection) Send(line string) error {
	if !c.alive.Load() {
		return ErrConnClosed
	}
	select {
	case <-c.quit:
		return ErrConnClosed
	default:
	}
	select {
	case c.outbox <- line:
		return nil
	default:
	}

	timer := time.NewTimer(c.writeTimeout)
	defer timer.Stop()
	select {
	case c.outbox <- line:
		return nil
	case <-c.quit:
		return ErrConnClosed
	case <-timer.C:
		return ErrOutboxFull
	}
}

// ReadLine 读取一行。只能由处理协程调用。
func (c *Connection) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.reader.ReceiveMessage()
}

// Close 优雅关闭：停止接收新消息，在写超时内刷新队列后关闭套接字。
// 可以重复调用，也可以与 Abort 并发调用。
func (c *Connection) Close() {
	c.stop()
	<-c.writerDone
	c.closeSocket()
}

// Abort 立即关闭套接字，阻塞中的读写会马上返回错误
func (c *Connection) Abort() {
	c.stop()
	c.closeSocket()
}

func (c *Connection) stop() {
	c.quitOnce.Do(func() {
		c.alive.Store(false)
		close(c.quit)
	})
}

func (c *Connection) closeSocket() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// writeLoop 连接唯一的写协程
func (c *Connection) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case line := <-c.outbox:
			if err := c.write(line); err != nil {
				// 写失败说明对端已不可达，关闭套接字让读协程进入 Closing
				c.stop()
				c.closeSocket()
				return
			}
		case <-c.quit:
			c.flush()
			return
		}
	}
}

// flush 写出队列中剩余的消息
func (c *Connection) flush() {
	for {
		select {
		case line := <-c.outbox:
			if err := c.write(line); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(line string) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return tools.SendMessage(c.conn, line)
}
