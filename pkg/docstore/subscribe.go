package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// rewatchBackoff is the delay before re-establishing a broken watcher.
const rewatchBackoff = time.Second

// Snapshot is the full matching result set of a subscribed query, emitted
// whenever any document in the collection changes. Docs are ordered by id.
type Snapshot struct {
	Docs []Doc
}

// Decode unmarshals every document in the snapshot into a slice of T.
func Decode[T any](s Snapshot) ([]T, error) {
	out := make([]T, 0, len(s.Docs))
	for _, doc := range s.Docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Subscription is a live feed of snapshots over a collection query.
//
// The snapshot channel is conflated: if the consumer falls behind, stale
// snapshots are dropped in favor of the latest one. Stream errors are
// reported on Errors without closing the feed; the subscription stays open
// until Cancel is called or the subscribe context ends.
type Subscription struct {
	snapshots chan Snapshot
	errs      chan error
	stop      chan struct{}
	once      sync.Once
}

// Snapshots returns the snapshot channel. It is closed after Cancel.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Errors returns the stream error channel. Errors are advisory: the
// subscription remains open after an error is reported.
func (s *Subscription) Errors() <-chan error {
	return s.errs
}

// Cancel stops the feed and releases the underlying watcher.
// It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Subscription) emit(snap Snapshot) {
	for {
		select {
		case s.snapshots <- snap:
			return
		default:
		}
		// Drop the stale snapshot and retry with the latest.
		select {
		case <-s.snapshots:
		default:
		}
	}
}

func (s *Subscription) reportError(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Subscribe opens a live subscription over the collection, restricted to
// documents matching every filter.
//
// The first snapshot reflects the current contents of the collection; every
// subsequent change to any document produces a new full snapshot. The caller
// must Cancel the subscription when done or the watcher leaks.
func (c *Collection) Subscribe(ctx context.Context, filters ...Filter) (*Subscription, error) {
	watcher, err := c.kv.WatchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch collection %q: %w", c.name, err)
	}

	sub := &Subscription{
		snapshots: make(chan Snapshot, 1),
		errs:      make(chan error, 1),
		stop:      make(chan struct{}),
	}

	go c.feed(ctx, watcher, sub, filters)
	return sub, nil
}

// feed mirrors the bucket into a replica map and emits a filtered snapshot
// on every change once the initial replay has completed.
func (c *Collection) feed(ctx context.Context, watcher jetstream.KeyWatcher, sub *Subscription, filters []Filter) {
	defer close(sub.snapshots)
	defer func() { _ = watcher.Stop() }()

	replica := map[string]json.RawMessage{}
	ready := false

	for {
		select {
		case <-sub.stop:
			return
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				// Broken stream: report and re-watch. The subscription stays
				// open and keeps emitting once the watcher recovers.
				sub.reportError(fmt.Errorf("subscription stream closed for %q", c.name))
				c.log.Warn(ctx, "watcher closed, re-establishing")
				next, err := c.rewatch(ctx, sub)
				if err != nil {
					return
				}
				watcher = next
				replica = map[string]json.RawMessage{}
				ready = false
				continue
			}
			if entry == nil {
				// Initial replay complete.
				ready = true
				sub.emit(c.snapshot(replica, filters, sub))
				continue
			}
			switch entry.Operation() {
			case jetstream.KeyValuePut:
				replica[entry.Key()] = append(json.RawMessage(nil), entry.Value()...)
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				delete(replica, entry.Key())
			}
			if ready {
				sub.emit(c.snapshot(replica, filters, sub))
			}
		}
	}
}

func (c *Collection) rewatch(ctx context.Context, sub *Subscription) (jetstream.KeyWatcher, error) {
	for {
		select {
		case <-sub.stop:
			return nil, context.Canceled
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rewatchBackoff):
		}
		watcher, err := c.kv.WatchAll(ctx)
		if err != nil {
			sub.reportError(fmt.Errorf("re-watch collection %q: %w", c.name, err))
			continue
		}
		return watcher, nil
	}
}

func (c *Collection) snapshot(replica map[string]json.RawMessage, filters []Filter, sub *Subscription) Snapshot {
	ids := make([]string, 0, len(replica))
	for id := range replica {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]Doc, 0, len(ids))
	for _, id := range ids {
		data := replica[id]
		ok, err := matchesFilters(data, filters)
		if err != nil {
			sub.reportError(err)
			c.log.Warn(context.Background(), "skipping undecodable document",
				zap.String("id", id), zap.Error(err))
			continue
		}
		if ok {
			docs = append(docs, Doc{ID: id, Data: data})
		}
	}
	return Snapshot{Docs: docs}
}
