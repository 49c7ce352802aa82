package internal

import (
	"errors"
	"fmt"
	"io"

	"LineChat/tools"
)

var errNotConnected = errors.New("客户端尚未连接")

// Run 启动收发两个协程：服务器消息写到 out，console 输入发给服务器。
// 任一方结束都会关闭整个客户端；返回关闭原因，主动退出或服务器正常关闭时为 nil。
func (c *Client) Run(console io.Reader, out io.Writer) error {
	if c.conn == nil {
		return errNotConnected
	}
	select {
	case <-c.done:
		return c.cause()
	default:
	}

	go c.receiveFromServer(out)
	go c.sendToServer(console)

	<-c.done
	return c.cause()
}

// receiveFromServer 逐行读取服务器消息并原样输出（包括昵称提示）
func (c *Client) receiveFromServer(out io.Writer) {
	defer c.safeRecover("接收协程")

	for c.isConnectedAtomic() {
		msg, err := c.reader.ReceiveMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.cleanup(nil)
			} else {
				c.cleanup(fmt.Errorf("%w: %w", ErrDisconnected, err))
			}
			return
		}
		if err := tools.PrintMessage(out, "", msg); err != nil {
			c.cleanup(fmt.Errorf("输出消息失败: %w", err))
			return
		}
	}
}

// sendToServer 读取控制台输入并逐行发给服务器，读到退出口令时发送后关闭
func (c *Client) sendToServer(console io.Reader) {
	defer c.safeRecover("发送协程")

	input := tools.NewLineReader(console)
	for {
		line, err := input.ReceiveMessage()
		select {
		case <-c.done:
			return
		default:
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.cleanup(nil)
			} else {
				c.cleanup(fmt.Errorf("读取输入失败: %w", err))
			}
			return
		}

		if err := tools.SendMessage(c.conn, line); err != nil {
			c.cleanup(fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}
		if tools.IsQuit(line, c.quitTokens) {
			c.cleanup(nil)
			return
		}
	}
}
