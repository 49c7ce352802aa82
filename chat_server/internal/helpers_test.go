package internal

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"LineChat/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.WriteTimeout = time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// peer 测试中扮演网络对端
type peer struct {
	conn   net.Conn
	reader *tools.LineReader
}

func newPeer(conn net.Conn) *peer {
	return &peer{conn: conn, reader: tools.NewLineReader(conn)}
}

func (p *peer) readLine(t *testing.T) string {
	t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := p.reader.ReceiveMessage()
	if err != nil {
		t.Fatalf("peer read: unexpected error %v", err)
	}
	return line
}

func (p *peer) expectLine(t *testing.T, want string) {
	t.Helper()
	if got := p.readLine(t); got != want {
		t.Fatalf("peer received %q, want %q", got, want)
	}
}

// expectNothing 在 d 时间内不应收到任何数据
func (p *peer) expectNothing(t *testing.T, d time.Duration) {
	t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(d))
	line, err := p.reader.ReceiveMessage()
	if err == nil {
		t.Fatalf("peer unexpectedly received %q", line)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("peer read: expected timeout, got %v", err)
	}
}

// expectClosed 对端应读到 EOF（或连接被重置）
func (p *peer) expectClosed(t *testing.T) {
	t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := p.reader.ReceiveMessage()
	if err == nil {
		t.Fatalf("peer expected close, received %q", line)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatal("peer expected close, read timed out")
	}
}

func (p *peer) send(t *testing.T, line string) {
	t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := tools.SendMessage(p.conn, line); err != nil {
		t.Fatalf("peer send %q: %v", line, err)
	}
}

// pipeConnection 通过 net.Pipe 创建一个 Connection 及其对端
func pipeConnection(t *testing.T, cfg Config) (*Connection, *peer) {
	t.Helper()
	server, client := net.Pipe()
	c := NewConnection(nextConnID(), server, cfg)
	t.Cleanup(func() {
		c.Abort()
		client.Close()
	})
	return c, newPeer(client)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
