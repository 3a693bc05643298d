package session

import (
	"context"
	"sync"
)

// Broker carries authentication events per subject. Publishing a nil *Event signs the subject out.
type Broker interface {
	Publish(ctx context.Context, subjectID string, evt *Event) error
	// Subscribe delivers the subject's events until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, subjectID string) (<-chan *Event, error)
}

const subscriberBuffer = 16

// MemoryBroker is a Broker for a single process.
// Events are dropped for subscribers whose buffer is full.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan *Event]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[chan *Event]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, subjectID string, evt *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[subjectID] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, subjectID string) (<-chan *Event, error) {
	ch := make(chan *Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[subjectID] == nil {
		b.subs[subjectID] = make(map[chan *Event]struct{})
	}
	b.subs[subjectID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[subjectID], ch)
		if len(b.subs[subjectID]) == 0 {
			delete(b.subs, subjectID)
		}
		close(ch)
	}()
	return ch, nil
}
