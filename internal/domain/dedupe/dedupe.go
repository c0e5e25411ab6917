// Package dedupe tracks Idempotency-Key values so a retried POST is applied
// at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMaxSize = 50000
	defaultTTL     = 24 * time.Hour
)

// Deduper records idempotency keys.
type Deduper interface {
	// SeenAndRecord reports whether key was recorded within the TTL and
	// records it if not. The check and the write are atomic.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the request can be retried, for when the
	// handler failed after the key was recorded.
	Unrecord(ctx context.Context, key string)

	// Complete attaches the response of a successful request to key so
	// retries can be answered with it.
	Complete(ctx context.Context, key string, resp Response)

	// Response returns the response stored for key. It reports false while
	// the first request is still in flight or when key is unknown.
	Response(ctx context.Context, key string) (Response, bool)

	Size() int64
}

// Key scopes a client supplied key to the caller and route.
func Key(personID, route, key string) string {
	return personID + "|" + route + "|" + key
}

// Response is a recorded reply.
type Response struct {
	Status int
	Body   []byte
}

type entry struct {
	key  string
	at   time.Time
	resp *Response
}

// inMemoryDeduper keeps keys in insertion order; the oldest is evicted when
// the bound is reached and entries older than ttl count as unseen.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a deduper. maxSize <= 0 means unbounded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)
	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.remove(d.order.Front())
	}
	d.seen[key] = d.order.PushBack(&entry{key: key, at: now})
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		d.remove(el)
	}
}

func (d *inMemoryDeduper) Complete(_ context.Context, key string, resp Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		resp.Body = append([]byte(nil), resp.Body...)
		el.Value.(*entry).resp = &resp
	}
}

func (d *inMemoryDeduper) Response(_ context.Context, key string) (Response, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expire(d.now())
	el, ok := d.seen[key]
	if !ok || el.Value.(*entry).resp == nil {
		return Response{}, false
	}
	return *el.Value.(*entry).resp, true
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// expire drops entries recorded before now-ttl. Caller holds mu.
func (d *inMemoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	cutoff := now.Add(-d.ttl)
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if el.Value.(*entry).at.After(cutoff) {
			return
		}
		d.remove(el)
	}
}

func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	e := d.order.Remove(el).(*entry)
	delete(d.seen, e.key)
	d.size.Add(-1)
}
