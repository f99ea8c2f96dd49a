package relay

import "testing"

func TestDirectory_RegisterDisplaces(t *testing.T) {
	d := NewDirectory()
	conn1 := newMockConn()
	conn2 := newMockConn()

	if prev, replaced := d.Register("alice", conn1); replaced || prev != nil {
		t.Error("first registration must not report a displaced handle")
	}
	if prev, replaced := d.Register("alice", conn1); replaced || prev != nil {
		t.Error("re-registering the same handle must not report displacement")
	}

	prev, replaced := d.Register("alice", conn2)
	if !replaced || prev != Sender(conn1) {
		t.Error("expected conn1 to be reported as displaced")
	}
	if got, ok := d.Lookup("alice"); !ok || got != Sender(conn2) {
		t.Error("lookup should resolve to the newest connection")
	}
}

func TestDirectory_UnregisterCompareAndDelete(t *testing.T) {
	d := NewDirectory()
	conn1 := newMockConn()
	conn2 := newMockConn()

	d.Register("alice", conn1)
	d.Register("alice", conn2)

	// The displaced connection's teardown must not evict conn2.
	if d.Unregister("alice", conn1) {
		t.Error("stale handle must not own the mapping")
	}
	if _, ok := d.Lookup("alice"); !ok {
		t.Fatal("alice should still be registered")
	}

	if !d.Unregister("alice", conn2) {
		t.Error("owning handle should unregister")
	}
	if _, ok := d.Lookup("alice"); ok {
		t.Error("alice should be gone")
	}
	if d.Unregister("alice", conn2) {
		t.Error("second unregister must be a no-op")
	}
}

func TestDirectory_OnlineSorted(t *testing.T) {
	d := NewDirectory()
	for _, id := range []string{"carol", "alice", "bob"} {
		d.Register(id, newMockConn())
	}

	got := d.Online()
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("expected %d users, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDirectory_ConnsExcept(t *testing.T) {
	d := NewDirectory()
	connA := newMockConn()
	d.Register("alice", connA)
	d.Register("bob", newMockConn())

	if got := d.Conns(); len(got) != 2 {
		t.Errorf("expected 2 conns, got %d", len(got))
	}
	got := d.ConnsExcept(connA)
	if len(got) != 1 || got[0] == Sender(connA) {
		t.Errorf("expected only bob's conn, got %d handles", len(got))
	}
}
