package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core/user"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]State, 0, len(r.snaps))
	for _, s := range r.snaps {
		states = append(states, s.State)
	}
	return states
}

func TestManager_transitions(t *testing.T) {
	rec := &recorder{}
	m := NewManager(NewResolver(newFakeStore(storedStudent), &testLogger{}), rec.record)
	assert.Equal(t, StateUnresolved, m.Current().State)

	m.Mount()
	m.Mount()
	assert.Equal(t, StateLoading, m.Current().State)

	m.Handle(context.Background(), &Event{SubjectID: "u1", Email: storedStudent.Email})
	snap := m.Current()
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.ID)

	m.Handle(context.Background(), nil)
	assert.Equal(t, Snapshot{State: StateAnonymous}, m.Current())

	assert.Equal(t, []State{StateLoading, StateAuthenticated, StateAnonymous}, rec.states())
}

func TestManager_Handle_fetchErrorIsAnonymous(t *testing.T) {
	store := newFakeStore(storedStudent)
	store.getErr = assert.AnError
	m := NewManager(NewResolver(store, &testLogger{}), nil)
	m.Mount()

	m.Handle(context.Background(), &Event{SubjectID: "u1", Email: storedStudent.Email})
	assert.Equal(t, Snapshot{State: StateAnonymous}, m.Current())
}

func TestManager_Handle_lateResultAfterClose(t *testing.T) {
	store := newFakeStore(storedStudent)
	store.block = make(chan struct{})
	rec := &recorder{}
	m := NewManager(NewResolver(store, &testLogger{}), rec.record)
	m.Mount()

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		m.Handle(ctx, &Event{SubjectID: "u1", Email: storedStudent.Email})
	}()

	m.Close()
	cancel()
	close(store.block)
	<-done

	assert.True(t, m.Closed())
	assert.Equal(t, Snapshot{State: StateLoading}, m.Current())
	assert.Equal(t, []State{StateLoading}, rec.states())

	m.Mount()
	m.Handle(context.Background(), nil)
	assert.Equal(t, []State{StateLoading}, rec.states(), "closed managers stay silent")
}

func TestManager_Run(t *testing.T) {
	store := newFakeStore(storedStudent, storedTeacher)
	rec := &recorder{}
	m := NewManager(NewResolver(store, &testLogger{}), rec.record)

	events := make(chan *Event, 3)
	events <- &Event{SubjectID: "u1", Email: storedStudent.Email}
	events <- nil
	events <- &Event{SubjectID: "u2", Email: storedTeacher.Email}
	close(events)

	m.Run(context.Background(), events)

	assert.Equal(t, []State{StateLoading, StateAuthenticated, StateAnonymous, StateAuthenticated}, rec.states())
	snap := m.Current()
	require.NotNil(t, snap.User)
	assert.Equal(t, user.RoleTeacher, snap.User.Role)
	assert.False(t, m.Closed())
}

func TestManager_Run_closesWhenContextIsDone(t *testing.T) {
	m := NewManager(NewResolver(newFakeStore(), &testLogger{}), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, make(chan *Event))
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return")
	}
	assert.True(t, m.Closed())
}

func TestSnapshot_JSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{State: StateAnonymous})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state": "anonymous", "user": null}`, string(data))
}
