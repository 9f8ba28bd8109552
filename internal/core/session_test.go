package core

import (
	"testing"
	"time"

	"github.com/JonMunkholm/jsonbi/internal/tabular"
)

// fakeClock is a settable time source for session expiry tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedStore(ttl time.Duration, max int) (*SessionStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
	store := NewSessionStore(ttl, max)
	store.now = clock.now
	return store, clock
}

func TestSessionStore_PutGet(t *testing.T) {
	store, _ := newClockedStore(time.Minute, 10)
	table := &tabular.Table{Columns: []string{"a"}, Rows: []tabular.Row{{"1"}}}

	sess := store.Put("data.json", table)
	if sess.ID == "" {
		t.Fatal("Put() returned an empty session id")
	}

	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Table != table {
		t.Error("Get() returned a different table")
	}
	if got.FileName != "data.json" {
		t.Errorf("FileName = %q, want %q", got.FileName, "data.json")
	}
}

func TestSessionStore_UniqueIDs(t *testing.T) {
	store, _ := newClockedStore(time.Minute, 100)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := store.Put("a.json", &tabular.Table{}).ID
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store, clock := newClockedStore(time.Minute, 10)
	sess := store.Put("a.json", &tabular.Table{})

	clock.advance(59 * time.Second)
	if _, err := store.Get(sess.ID); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	clock.advance(time.Second)
	if _, err := store.Get(sess.ID); err != ErrSessionNotFound {
		t.Errorf("Get() after expiry error = %v, want ErrSessionNotFound", err)
	}
	if got := store.Len(); got != 0 {
		t.Errorf("Len() after expired Get = %d, want 0", got)
	}
}

func TestSessionStore_Sweep(t *testing.T) {
	store, clock := newClockedStore(time.Minute, 10)
	store.Put("old.json", &tabular.Table{})
	clock.advance(30 * time.Second)
	fresh := store.Put("new.json", &tabular.Table{})
	clock.advance(45 * time.Second)

	if removed := store.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Errorf("fresh session should survive the sweep: %v", err)
	}
}

func TestSessionStore_EvictsOldestWhenFull(t *testing.T) {
	store, clock := newClockedStore(time.Hour, 2)

	first := store.Put("1.json", &tabular.Table{})
	clock.advance(time.Second)
	second := store.Put("2.json", &tabular.Table{})
	clock.advance(time.Second)
	third := store.Put("3.json", &tabular.Table{})

	if got := store.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if _, err := store.Get(first.ID); err != ErrSessionNotFound {
		t.Errorf("oldest session should be evicted, got err = %v", err)
	}
	for _, id := range []string{second.ID, third.ID} {
		if _, err := store.Get(id); err != nil {
			t.Errorf("Get(%s) error = %v", id, err)
		}
	}
}

func TestSessionStore_Delete(t *testing.T) {
	store, _ := newClockedStore(time.Minute, 10)
	sess := store.Put("a.json", &tabular.Table{})

	store.Delete(sess.ID)
	store.Delete("unknown")

	if _, err := store.Get(sess.ID); err != ErrSessionNotFound {
		t.Errorf("Get() after Delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_Claim(t *testing.T) {
	store, _ := newClockedStore(time.Minute, 10)
	sess := store.Put("a.json", &tabular.Table{})

	if _, err := store.Claim(sess.ID); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if _, err := store.Claim(sess.ID); err != ErrPublishInProgress {
		t.Errorf("second Claim() error = %v, want ErrPublishInProgress", err)
	}
	if _, err := store.Get(sess.ID); err != nil {
		t.Errorf("Get() on a claimed session error = %v", err)
	}

	store.Unclaim(sess.ID)
	if _, err := store.Claim(sess.ID); err != nil {
		t.Errorf("Claim() after Unclaim error = %v", err)
	}

	if _, err := store.Claim("unknown"); err != ErrSessionNotFound {
		t.Errorf("Claim(unknown) error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_ClaimedSurvivesSweepAndEviction(t *testing.T) {
	store, clock := newClockedStore(time.Minute, 1)
	held := store.Put("held.json", &tabular.Table{})
	if _, err := store.Claim(held.ID); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	clock.advance(time.Second)
	other := store.Put("other.json", &tabular.Table{})
	if got := store.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2 (claimed session is not evicted)", got)
	}

	clock.advance(2 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if _, err := store.Get(other.ID); err != ErrSessionNotFound {
		t.Errorf("unclaimed expired session should be swept, got err = %v", err)
	}

	store.Delete(held.ID)
	if got := store.Len(); got != 0 {
		t.Errorf("Len() after Delete = %d, want 0", got)
	}
}

func TestSessionStore_Defaults(t *testing.T) {
	store := NewSessionStore(0, 0)
	if store.ttl != DefaultSessionTTL {
		t.Errorf("ttl = %v, want %v", store.ttl, DefaultSessionTTL)
	}
	if store.max != DefaultMaxSessions {
		t.Errorf("max = %d, want %d", store.max, DefaultMaxSessions)
	}
}

func TestService_RunSweep(t *testing.T) {
	svc := newTestService(&fakePublisher{})
	clock := &fakeClock{t: time.Now()}
	svc.sessions.now = clock.now

	svc.sessions.Put("a.json", &tabular.Table{})
	clock.advance(2 * time.Minute)
	svc.runSweep()

	if got := svc.Status().Sessions; got != 0 {
		t.Errorf("Sessions after sweep = %d, want 0", got)
	}
}
