package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetsim/internal/core"
	"budgetsim/internal/log"
)

type fakeLister struct {
	mu      sync.Mutex
	balance core.Family
	calls   atomic.Int64
	err     error
}

func newFakeLister() *fakeLister {
	return &fakeLister{balance: core.Family{ID: 1, Name: "Boling", BankTotal: core.MustAmount("400")}}
}

func (l *fakeLister) set(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance.BankTotal = core.MustAmount(v)
}

func (l *fakeLister) ListFamilies(context.Context) ([]core.Family, error) {
	l.calls.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return []core.Family{l.balance}, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	changes []core.Change
}

func (p *fakePublisher) PublishChange(_ context.Context, c core.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

type countingObserver struct {
	subscribers atomic.Int64
	delivered   atomic.Int64
	dropped     atomic.Int64
}

func (o *countingObserver) SetSubscribers(n int) { o.subscribers.Store(int64(n)) }
func (o *countingObserver) ObserveBroadcast(delivered, dropped int) {
	o.delivered.Add(int64(delivered))
	o.dropped.Add(int64(dropped))
}

func receive(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestSubscribeSendsCurrentState(t *testing.T) {
	hub := NewHub(newFakeLister(), DefaultHubConfig(), WithHubLogger(log.Discard()))
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	snap := receive(t, sub)
	if len(snap.Data) != 1 || !snap.Data[0].BankTotal.Equal(core.MustAmount("400")) {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d", hub.Subscribers())
	}
}

func TestNotifyReachesEverySubscriber(t *testing.T) {
	lister := newFakeLister()
	var invalidated []core.Change
	hub := NewHub(lister, DefaultHubConfig(), WithInvalidator(func(c core.Change) {
		invalidated = append(invalidated, c)
	}))
	defer hub.Close()

	ctx := context.Background()
	a, _ := hub.Subscribe(ctx)
	b, _ := hub.Subscribe(ctx)
	receive(t, a)
	receive(t, b)

	lister.set("650")
	change := core.Change{Operation: log.OpDeposit, FamilyID: 1}
	hub.Notify(ctx, change)

	if len(invalidated) != 1 || invalidated[0] != change {
		t.Fatalf("invalidator must run before Notify returns, got %v", invalidated)
	}

	for _, sub := range []*Subscription{a, b} {
		snap := receive(t, sub)
		if !snap.Data[0].BankTotal.Equal(core.MustAmount("650")) {
			t.Errorf("subscriber %s got stale balance %s", sub.ID, snap.Data[0].BankTotal)
		}
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	lister := newFakeLister()
	obs := &countingObserver{}
	hub := NewHub(lister, HubConfig{Buffer: 1}, WithObserver(obs))
	defer hub.Close()

	ctx := context.Background()
	slow, _ := hub.Subscribe(ctx) // never drained
	fast, _ := hub.Subscribe(ctx)
	receive(t, fast)

	for i := 1; i <= 5; i++ {
		lister.set("10" + string(rune('0'+i)))
		if err := hub.NotifyAll(ctx); err != nil {
			t.Fatal(err)
		}
		receive(t, fast)
	}

	// The slow subscriber holds only the newest snapshot.
	snap := receive(t, slow)
	if !snap.Data[0].BankTotal.Equal(core.MustAmount("105")) {
		t.Fatalf("slow subscriber should see latest state, got %s", snap.Data[0].BankTotal)
	}
	if obs.dropped.Load() == 0 {
		t.Error("expected dropped deliveries to be observed")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	obs := &countingObserver{}
	hub := NewHub(newFakeLister(), DefaultHubConfig(), WithObserver(obs))
	defer hub.Close()

	sub, _ := hub.Subscribe(context.Background())
	receive(t, sub)
	sub.Close()
	sub.Close()

	if _, ok := <-sub.C; ok {
		t.Fatal("channel should be closed")
	}
	if hub.Subscribers() != 0 || obs.subscribers.Load() != 0 {
		t.Fatalf("subscriber count not updated: %d / %d", hub.Subscribers(), obs.subscribers.Load())
	}

	// Notifying with nobody listening is harmless.
	if err := hub.NotifyAll(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestContextCancelUnsubscribes(t *testing.T) {
	hub := NewHub(newFakeLister(), DefaultHubConfig())
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := hub.Subscribe(ctx)
	receive(t, sub)
	cancel()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestNotifyCoalescesBursts(t *testing.T) {
	lister := newFakeLister()
	hub := NewHub(lister, DefaultHubConfig())
	defer hub.Close()

	ctx := context.Background()
	sub, _ := hub.Subscribe(ctx)
	receive(t, sub)
	before := lister.calls.Load()

	for i := 0; i < 100; i++ {
		hub.Notify(ctx, core.Change{Operation: log.OpDeposit, FamilyID: 1})
	}
	hub.Wait()

	loads := lister.calls.Load() - before
	if loads < 1 || loads > 100 {
		t.Fatalf("unexpected number of loads: %d", loads)
	}
	if snap := receive(t, sub); len(snap.Data) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestNotifyPublishesButReceiveDoesNot(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(newFakeLister(), DefaultHubConfig(), WithPublisher(pub))
	defer hub.Close()

	ctx := context.Background()
	hub.Notify(ctx, core.Change{Operation: log.OpWithdraw, FamilyID: 1})
	hub.Receive(core.Change{Operation: log.OpDeposit, FamilyID: 1})
	hub.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.changes) != 1 || pub.changes[0].Operation != log.OpWithdraw {
		t.Fatalf("published %v, want only the local change", pub.changes)
	}
}

func TestSubscribeFailsWhenListerFails(t *testing.T) {
	lister := newFakeLister()
	lister.err = errors.New("db down")
	hub := NewHub(lister, DefaultHubConfig())
	defer hub.Close()

	if _, err := hub.Subscribe(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n := hub.Subscribers(); n != 0 {
		t.Fatalf("failed subscribe left %d subscribers registered", n)
	}
	if err := hub.NotifyAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestClosedHubRejectsSubscribers(t *testing.T) {
	hub := NewHub(newFakeLister(), DefaultHubConfig())
	sub, _ := hub.Subscribe(context.Background())
	hub.Close()

	receive(t, sub) // initial snapshot is still readable
	if _, ok := <-sub.C; ok {
		t.Fatal("channel should be closed by Close")
	}
	if _, err := hub.Subscribe(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	b, err := json.Marshal(Snapshot{Data: []core.Family{{ID: 1, Name: "Boling"}}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string][]map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["data"][0]["name"] != "Boling" {
		t.Fatalf("unexpected shape %s", b)
	}
}

func TestHubID(t *testing.T) {
	a := NewHub(newFakeLister(), DefaultHubConfig())
	b := NewHub(newFakeLister(), DefaultHubConfig())
	defer a.Close()
	defer b.Close()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("ids should be unique, got %q and %q", a.ID(), b.ID())
	}

	fixed := NewHub(newFakeLister(), DefaultHubConfig(), WithHubID("node-1"))
	defer fixed.Close()
	if fixed.ID() != "node-1" {
		t.Fatalf("ID() = %q", fixed.ID())
	}
}

// gatedLister blocks its first call after reading, until release is closed.
type gatedLister struct {
	inner   *fakeLister
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (g *gatedLister) ListFamilies(ctx context.Context) ([]core.Family, error) {
	families, err := g.inner.ListFamilies(ctx)
	gated := false
	g.once.Do(func() { gated = true })
	if gated {
		close(g.read)
		<-g.release
	}
	return families, err
}

func TestChangeDuringSubscribeReachesNewSubscriber(t *testing.T) {
	lister := newFakeLister()
	gate := &gatedLister{inner: lister, read: make(chan struct{}), release: make(chan struct{})}
	hub := NewHub(gate, DefaultHubConfig())
	defer hub.Close()

	type result struct {
		sub *Subscription
		err error
	}
	done := make(chan result, 1)
	go func() {
		sub, err := hub.Subscribe(context.Background())
		done <- result{sub, err}
	}()

	<-gate.read
	lister.set("1000")
	hub.Notify(context.Background(), core.Change{Operation: log.OpDeposit, FamilyID: 1})
	hub.Wait()
	close(gate.release)

	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	defer res.sub.Close()
	hub.Wait()

	var last Snapshot
	for {
		select {
		case snap := <-res.sub.C:
			last = snap
			continue
		case <-time.After(200 * time.Millisecond):
		}
		break
	}
	if len(last.Data) != 1 || !last.Data[0].BankTotal.Equal(core.MustAmount("1000")) {
		t.Fatalf("latest snapshot = %+v, want balance 1000", last.Data)
	}
}
