package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
	"call-console/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo   *MemoryRepo
	events *audit.MemoryRepo
	audit  *audit.Logger
	lease  *fakeLease
	mgr    *Manager
}

func newFixture(t *testing.T, withLease bool) *fixture {
	t.Helper()
	f := &fixture{
		repo:   NewMemoryRepo(),
		events: audit.NewMemoryRepo(),
	}
	f.audit = audit.NewLogger(f.events, audit.Options{})
	t.Cleanup(f.audit.Close)

	deps := Deps{
		Repo: f.repo,
		Resolver: StaticResolver{
			Clients:   map[string]bool{"C1": true, "C2": true},
			Campaigns: map[string]bool{"P1": true},
		},
		Events: f.audit,
	}
	if withLease {
		f.lease = newFakeLease()
		deps.Lease = f.lease
	}
	m, err := NewManager(auth.Session{OperatorID: "op-1", Role: "agent"}, deps)
	require.NoError(t, err)
	f.mgr = m
	return f
}

func (f *fixture) flushEvents(t *testing.T) []audit.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.audit.Flush(ctx))
	return f.events.Events()
}

func activeCount(sessions []CallSession, operatorID string) int {
	n := 0
	for _, s := range sessions {
		if s.OperatorID == operatorID && s.Status == StatusActive {
			n++
		}
	}
	return n
}

func TestManager_StartThenComplete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	s, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, "call started from console", s.Notes)
	assert.False(t, s.StartedAt.IsZero())

	active, ok := f.mgr.Active()
	require.True(t, ok)
	assert.Equal(t, s.ID, active.ID)

	done, err := f.mgr.UpdateStatus(ctx, s.ID, StatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "status updated to completed", done.Notes)
	require.NotNil(t, done.EndedAt)

	_, ok = f.mgr.Active()
	assert.False(t, ok)

	stored, err := f.repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Zero(t, activeCount(f.repo.Sessions(), "op-1"))

	evs := f.flushEvents(t)
	require.Len(t, evs, 1, "only call initiation is audited")
	assert.Equal(t, audit.EventTypeCallInit, evs[0].Type)
	assert.Equal(t, audit.StatusSuccess, evs[0].Status)
	assert.Equal(t, "op-1", evs[0].ActorRef)
	assert.JSONEq(t, `{"client":"C1","campaign":"P1"}`, string(evs[0].Data))
}

func TestManager_StartCallValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	cases := []struct {
		name, client, campaign string
	}{
		{"empty client", "", "P1"},
		{"blank campaign", "C1", "   "},
		{"unknown client", "C9", "P1"},
		{"unknown campaign", "C1", "P9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.mgr.StartCall(ctx, tc.client, tc.campaign)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
			_, ok := f.mgr.Active()
			assert.False(t, ok)
		})
	}
	assert.Empty(t, f.repo.Sessions())
	assert.Empty(t, f.flushEvents(t))
}

func TestManager_RejectsSecondActiveSession(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	first, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err)

	_, err = f.mgr.StartCall(ctx, "C2", "P1")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	active, _ := f.mgr.Active()
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, 1, activeCount(f.repo.Sessions(), "op-1"))
}

func TestManager_UpdateStatusValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.mgr.UpdateStatus(ctx, "nope", StatusCompleted, "")
	assert.True(t, apperr.IsValidation(err), "no active session: %v", err)

	s, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err)

	_, err = f.mgr.UpdateStatus(ctx, "other-id", StatusCompleted, "")
	assert.True(t, apperr.IsValidation(err), "mismatched id: %v", err)

	for _, st := range []Status{StatusActive, "callback", ""} {
		_, err = f.mgr.UpdateStatus(ctx, s.ID, st, "")
		assert.True(t, apperr.IsValidation(err), "status %q: %v", st, err)
	}

	_, ok := f.mgr.Active()
	assert.True(t, ok, "failed updates must not clear the active session")
}

func TestManager_UpdateStatusKeepsNotes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	s, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err)
	done, err := f.mgr.UpdateStatus(ctx, s.ID, StatusAppointmentScheduled, "tuesday 10:00")
	require.NoError(t, err)
	assert.Equal(t, "tuesday 10:00", done.Notes)
}

func TestManager_StoreFailureOnStart(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.repo.FailWith(errors.New("connection refused"))

	_, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.Error(t, err)
	assert.True(t, apperr.IsStore(err), "got %v", err)

	_, ok := f.mgr.Active()
	assert.False(t, ok)
	assert.Empty(t, f.lease.holders(), "lease must be released after a failed create")

	evs := f.flushEvents(t)
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventTypeCallInit, evs[0].Type)
	assert.Equal(t, audit.StatusError, evs[0].Status)

	f.repo.FailWith(nil)
	_, err = f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err, "operator may retry")
}

func TestManager_StoreFailureOnUpdateKeepsActive(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	s, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err)

	f.repo.FailWith(errors.New("timeout"))
	_, err = f.mgr.UpdateStatus(ctx, s.ID, StatusNoAnswer, "")
	assert.True(t, apperr.IsStore(err))
	_, ok := f.mgr.Active()
	assert.True(t, ok)

	f.repo.FailWith(nil)
	_, err = f.mgr.UpdateStatus(ctx, s.ID, StatusNoAnswer, "")
	require.NoError(t, err)
}

func TestManager_SessionClosedElsewhereReturnsToIdle(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	s, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err)

	// A second console of the same operator adopts and closes the call.
	other, err := NewManager(auth.Session{OperatorID: "op-1", Role: "agent"}, Deps{
		Repo:     f.repo,
		Resolver: StaticResolver{Clients: map[string]bool{"C1": true}, Campaigns: map[string]bool{"P1": true}},
	})
	require.NoError(t, err)
	require.NoError(t, other.Restore(ctx))
	_, err = other.UpdateStatus(ctx, s.ID, StatusCompleted, "")
	require.NoError(t, err)

	_, err = f.mgr.UpdateStatus(ctx, s.ID, StatusNoAnswer, "")
	assert.True(t, apperr.IsValidation(err), "got %v", err)
	_, ok := f.mgr.Active()
	assert.False(t, ok)
	assert.Empty(t, f.lease.holders())

	next, err := f.mgr.StartCall(ctx, "C2", "P1")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, next.ID)
}

func TestManager_LeaseBlocksSecondProcess(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	s, err := f.mgr.StartCall(ctx, "C1", "P1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"op-1": s.ID}, f.lease.holders())

	// A second console for the same operator shares the lease but not the pointer.
	other, err := NewManager(auth.Session{OperatorID: "op-1", Role: "agent"}, Deps{
		Repo:     NewMemoryRepo(),
		Resolver: StaticResolver{Clients: map[string]bool{"C2": true}, Campaigns: map[string]bool{"P1": true}},
		Lease:    f.lease,
	})
	require.NoError(t, err)
	_, err = other.StartCall(ctx, "C2", "P1")
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	_, err = f.mgr.UpdateStatus(ctx, s.ID, StatusMissed, "")
	require.NoError(t, err)
	assert.Empty(t, f.lease.holders())

	_, err = other.StartCall(ctx, "C2", "P1")
	require.NoError(t, err)
}

func TestManager_LeaseBackendDownFallsBackToLocal(t *testing.T) {
	f := newFixture(t, true)
	f.lease.fail = errors.New("redis down")

	_, err := f.mgr.StartCall(context.Background(), "C1", "P1")
	require.NoError(t, err)
}

func TestManager_ConcurrentStartsLeaveOneActive(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.mgr.StartCall(ctx, "C1", "P1"); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, activeCount(f.repo.Sessions(), "op-1"))
}

func TestManager_SequenceNeverHasTwoActive(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	statuses := TerminalStatuses()

	for i := 0; i < 12; i++ {
		s, err := f.mgr.StartCall(ctx, "C1", "P1")
		require.NoError(t, err)
		// Extra start attempts are refused while s is active.
		_, err = f.mgr.StartCall(ctx, "C2", "P1")
		require.Error(t, err)
		assert.Equal(t, 1, activeCount(f.repo.Sessions(), "op-1"))

		_, err = f.mgr.UpdateStatus(ctx, s.ID, statuses[i%len(statuses)], "")
		require.NoError(t, err)
		assert.Zero(t, activeCount(f.repo.Sessions(), "op-1"))
	}
	assert.Len(t, f.repo.Sessions(), 12)
}

func TestRegistry_ForRestoresActiveSession(t *testing.T) {
	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateSession(context.Background(), CallSession{
		ID: "call-1", OperatorID: "op-1", ClientID: "C1", CampaignID: "P1",
		Status: StatusActive, StartedAt: time.Now(),
	}))
	reg := NewRegistry(Deps{Repo: repo, Resolver: StaticResolver{}})

	s := auth.Session{OperatorID: "op-1", Role: "agent"}
	m, err := reg.For(context.Background(), s)
	require.NoError(t, err)
	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, "call-1", active.ID)

	again, err := reg.For(context.Background(), s)
	require.NoError(t, err)
	assert.Same(t, m, again)

	_, err = reg.For(context.Background(), auth.Session{})
	assert.Error(t, err)
}

// slowRepo blocks ActiveSession for one operator until release is closed.
type slowRepo struct {
	*MemoryRepo
	operator string
	entered  chan struct{}
	release  chan struct{}
}

func (r *slowRepo) ActiveSession(ctx context.Context, operatorID string) (CallSession, error) {
	if operatorID == r.operator {
		r.entered <- struct{}{}
		<-r.release
	}
	return r.MemoryRepo.ActiveSession(ctx, operatorID)
}

func TestRegistry_SlowRestoreDoesNotBlockOtherOperators(t *testing.T) {
	repo := &slowRepo{MemoryRepo: NewMemoryRepo(), operator: "op-slow", entered: make(chan struct{}, 1), release: make(chan struct{})}
	reg := NewRegistry(Deps{Repo: repo, Resolver: StaticResolver{}})
	ctx := context.Background()

	slow := make(chan *Manager, 1)
	go func() {
		m, _ := reg.For(ctx, auth.Session{OperatorID: "op-slow", Role: "agent"})
		slow <- m
	}()
	<-repo.entered

	fast := make(chan error, 1)
	go func() {
		_, err := reg.For(ctx, auth.Session{OperatorID: "op-fast", Role: "agent"})
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("For blocked behind another operator's restore")
	}

	close(repo.release)
	m := <-slow
	require.NotNil(t, m)
	again, err := reg.For(ctx, auth.Session{OperatorID: "op-slow", Role: "agent"})
	require.NoError(t, err)
	assert.Same(t, m, again)
}

type fakeLease struct {
	mu   sync.Mutex
	held map[string]string
	fail error
}

func newFakeLease() *fakeLease { return &fakeLease{held: map[string]string{}} }

func (l *fakeLease) Acquire(ctx context.Context, operatorID, callID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return false, l.fail
	}
	if cur, ok := l.held[operatorID]; ok && cur != callID {
		return false, nil
	}
	l.held[operatorID] = callID
	return true, nil
}

func (l *fakeLease) Release(ctx context.Context, operatorID, callID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	if l.held[operatorID] == callID {
		delete(l.held, operatorID)
	}
	return nil
}

func (l *fakeLease) holders() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.held))
	for k, v := range l.held {
		out[k] = v
	}
	return out
}
