package internal

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestConnection_SendOrder(t *testing.T) {
	c, p := pipeConnection(t, testConfig())

	lines := []string{"one", "two", "three"}
	for _, l := range lines {
		if err := c.Send(l); err != nil {
			t.Fatalf("Send(%q): %v", l, err)
		}
	}
	for _, l := range lines {
		p.expectLine(t, l)
	}
}

func TestConnection_ReadLine(t *testing.T) {
	c, p := pipeConnection(t, testConfig())

	go func() { _, _ = p.conn.Write([]byte("hola\r\n")) }()
	line, err := c.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if line != "hola" {
		t.Errorf("ReadLine = %q, want %q", line, "hola")
	}
}

func TestConnection_CloseFlushesAndIsIdempotent(t *testing.T) {
	c, p := pipeConnection(t, testConfig())

	_ = c.Send("bye")
	closed := make(chan struct{})
	go func() {
		c.Close()
		c.Close()
		close(closed)
	}()

	p.expectLine(t, "bye")
	p.expectClosed(t)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	if c.Alive() {
		t.Error("connection still alive after Close")
	}
	if err := c.Send("late"); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Send after Close: got %v, want ErrConnClosed", err)
	}
}

func TestConnection_ConcurrentCloseAndAbort(t *testing.T) {
	c, _ := pipeConnection(t, testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); c.Close() }()
		go func() { defer wg.Done(); c.Abort() }()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent Close/Abort did not finish")
	}
}

func TestConnection_AbortUnblocksRead(t *testing.T) {
	c, _ := pipeConnection(t, testConfig())

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadLine()
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	c.Abort()

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("ReadLine after Abort: expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine still blocked after Abort")
	}
}

func TestConnection_SlowConsumerIsCut(t *testing.T) {
	cfg := testConfig()
	cfg.OutboxSize = 1
	cfg.WriteTimeout = 100 * time.Millisecond
	c, _ := pipeConnection(t, cfg)

	// 对端从不读取：要么队列等待超时，要么写协程的写超时先关闭连接
	start := time.Now()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = c.Send("x")
	}
	if !errors.Is(err, ErrOutboxFull) && !errors.Is(err, ErrConnClosed) {
		t.Fatalf("Send to a consumer that never reads: got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("slow consumer detected after %v", elapsed)
	}
}

func TestConnection_BurstLargerThanOutbox(t *testing.T) {
	cfg := testConfig()
	cfg.OutboxSize = 2
	c, p := pipeConnection(t, cfg)

	const count = 50
	errc := make(chan error, 1)
	go func() {
		for i := 0; i < count; i++ {
			if err := c.Send(fmt.Sprintf("line-%d", i)); err != nil {
				errc <- err
				return
			}
		}
		errc <- nil
	}()

	for i := 0; i < count; i++ {
		p.expectLine(t, fmt.Sprintf("line-%d", i))
	}
	if err := <-errc; err != nil {
		t.Fatalf("Send to a reading consumer failed: %v", err)
	}
	if !c.Alive() {
		t.Error("reading consumer was cut")
	}
}

func TestConnection_ReadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ReadTimeout = 50 * time.Millisecond
	c, _ := pipeConnection(t, cfg)

	if _, err := c.ReadLine(); err == nil {
		t.Fatal("expected idle read timeout error")
	}
}
