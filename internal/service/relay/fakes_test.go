package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	"github.com/oshokin/cry-relay/internal/notify"
)

var (
	errTestSend  = errors.New("test send error")
	errTestStore = errors.New("test store error")
)

// recordingDispatcher collects dispatched intents.
type recordingDispatcher struct {
	// intents are all intents received so far.
	intents []domain.Intent
	// mu protects intents.
	mu sync.Mutex
}

func (r *recordingDispatcher) Dispatch(_ context.Context, intents ...domain.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.intents = append(r.intents, intents...)
}

// take returns and clears the collected intents.
func (r *recordingDispatcher) take() []domain.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.intents
	r.intents = nil

	return out
}

// count returns how many collected intents match kind and reason.
func (r *recordingDispatcher) count(kind domain.IntentKind, reason domain.NotifyReason) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, i := range r.intents {
		if i.Kind == kind && (kind == domain.IntentLogEpisode || i.Reason == reason) {
			n++
		}
	}

	return n
}

// memoryStore is a minimal in-memory Store implementation for tests.
type memoryStore struct {
	// records are the appended records.
	records []domain.Record
	// err is returned by every operation when set.
	err error
	// mu protects records.
	mu sync.Mutex
}

func (m *memoryStore) Append(_ context.Context, record domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.records = append(m.records, record)

	return nil
}

func (m *memoryStore) ByDate(_ context.Context, date string) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	var out []domain.Record

	for _, r := range m.records {
		if r.Date == date {
			out = append(out, r)
		}
	}

	return out, nil
}

func (m *memoryStore) Last(context.Context) (domain.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return domain.Record{}, false, m.err
	}

	if len(m.records) == 0 {
		return domain.Record{}, false, nil
	}

	return m.records[len(m.records)-1], true, nil
}

// all returns a copy of the appended records.
func (m *memoryStore) all() []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.Record(nil), m.records...)
}

// fakeNotifier records sent messages and optionally fails.
type fakeNotifier struct {
	// sent are the delivered messages.
	sent []notify.Message
	// err is returned by Send when set.
	err error
	// delay makes every Send wait this long, or until ctx is done.
	delay time.Duration
	// mu protects sent.
	mu sync.Mutex
}

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, msg)

	return nil
}

// texts returns the bodies of sent messages.
func (f *fakeNotifier) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}

	return out
}
