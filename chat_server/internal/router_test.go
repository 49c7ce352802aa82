package internal

import (
	"testing"
	"time"
)

func TestRouter_ExcludesOrigin(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, testLogger(), false)
	a, pa := pipeConnection(t, testConfig())
	b, pb := pipeConnection(t, testConfig())
	c, pc := pipeConnection(t, testConfig())
	r.Add(a)
	r.Add(b)
	r.Add(c)

	if n := router.Broadcast("alice: hi", a.ID()); n != 2 {
		t.Fatalf("Broadcast delivered to %d, want 2", n)
	}
	pb.expectLine(t, "alice: hi")
	pc.expectLine(t, "alice: hi")
	pa.expectNothing(t, 100*time.Millisecond)
}

func TestRouter_EchoToSender(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, testLogger(), true)
	a, pa := pipeConnection(t, testConfig())
	b, pb := pipeConnection(t, testConfig())
	r.Add(a)
	r.Add(b)

	if n := router.Broadcast("alice: hi", a.ID()); n != 2 {
		t.Fatalf("Broadcast delivered to %d, want 2", n)
	}
	pa.expectLine(t, "alice: hi")
	pb.expectLine(t, "alice: hi")
}

func TestRouter_BroadcastExceptIgnoresEcho(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, testLogger(), true)
	a, pa := pipeConnection(t, testConfig())
	b, pb := pipeConnection(t, testConfig())
	r.Add(a)
	r.Add(b)

	if n := router.BroadcastExcept(JoinNotice("alice"), a.ID()); n != 1 {
		t.Fatalf("BroadcastExcept delivered to %d, want 1", n)
	}
	pb.expectLine(t, JoinNotice("alice"))
	pa.expectNothing(t, 100*time.Millisecond)
}

func TestRouter_BroadcastAll(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, testLogger(), false)
	a, pa := pipeConnection(t, testConfig())
	r.Add(a)

	if n := router.BroadcastAll("notice"); n != 1 {
		t.Fatalf("BroadcastAll delivered to %d, want 1", n)
	}
	pa.expectLine(t, "notice")
}

func TestRouter_EmptyRegistry(t *testing.T) {
	router := NewRouter(NewRegistry(), testLogger(), false)
	if n := router.Broadcast("nobody", NoOrigin); n != 0 {
		t.Fatalf("Broadcast on empty registry delivered to %d", n)
	}
}

func TestRouter_FailedSendIsIsolatedAndEvicted(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, testLogger(), false)
	a, _ := pipeConnection(t, testConfig())
	dead, _ := pipeConnection(t, testConfig())
	c, pc := pipeConnection(t, testConfig())
	r.Add(a)
	r.Add(dead)
	r.Add(c)

	dead.Abort()

	if n := router.Broadcast("alice: hi", a.ID()); n != 1 {
		t.Fatalf("Broadcast delivered to %d, want 1", n)
	}
	pc.expectLine(t, "alice: hi")
	if _, ok := r.Get(dead.ID()); ok {
		t.Fatal("failed connection still registered")
	}

	// 之后的广播不再投递给已清理的连接
	if n := router.Broadcast("alice: again", a.ID()); n != 1 {
		t.Fatalf("second Broadcast delivered to %d, want 1", n)
	}
	pc.expectLine(t, "alice: again")
}

func TestRouter_PerSenderOrder(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, testLogger(), false)
	a, _ := pipeConnection(t, testConfig())
	b, pb := pipeConnection(t, testConfig())
	r.Add(a)
	r.Add(b)

	want := []string{"m1", "m2", "m3", "m4", "m5"}
	go func() {
		for _, m := range want {
			router.Broadcast(m, a.ID())
		}
	}()
	for _, m := range want {
		pb.expectLine(t, m)
	}
}

func TestRouter_Stopped(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, testLogger(), false)
	a, pa := pipeConnection(t, testConfig())
	r.Add(a)

	router.Stop()
	if n := router.BroadcastAll("dropped"); n != 0 {
		t.Fatalf("stopped router delivered to %d", n)
	}
	pa.expectNothing(t, 100*time.Millisecond)
}
