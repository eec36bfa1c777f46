// Package watcher implements the change-detecting pollers that sample status
// sources and broadcast an event only when the content actually changed.
//
// Each watcher is an independent periodic task scheduled through gocron in
// singleton mode, so a slow or hung read degrades only that source's
// freshness and never overlaps its own next tick or blocks the gateway.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/metrics"
	"github.com/snapstream-io/snapstream/internal/rooms"
	"github.com/snapstream-io/snapstream/shared/types"
)

// Broadcaster is the dispatch surface a watcher publishes to. Satisfied by
// *gateway.Hub.
type Broadcaster interface {
	BroadcastToRoom(room string, ev types.Event)
}

// Watcher samples one source on a fixed interval and broadcasts to one room
// when the snapshot content differs from the last delivered one.
type Watcher struct {
	source    Source
	room      string
	eventType types.EventType
	interval  time.Duration

	dispatcher Broadcaster
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// last is the normalized form of the last delivered snapshot; primed
	// distinguishes "never read" from a snapshot that normalizes to nil.
	// Only Tick touches them; gocron's singleton mode guarantees
	// sequential ticks.
	last   any
	primed bool
}

// New creates a Watcher publishing source changes into room. The room must
// be on the allow-list: its definition supplies the broadcast event type.
func New(source Source, room string, interval time.Duration, dispatcher Broadcaster, m *metrics.Metrics, logger *zap.Logger) (*Watcher, error) {
	def, ok := rooms.Lookup(room)
	if !ok {
		return nil, fmt.Errorf("watcher: unknown room %q", room)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("watcher: non-positive interval for source %q", source.Name())
	}

	return &Watcher{
		source:     source,
		room:       room,
		eventType:  def.EventType,
		interval:   interval,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger.Named("watcher").With(zap.String("source", source.Name())),
	}, nil
}

// Interval returns the polling interval.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Name returns the source name.
func (w *Watcher) Name() string { return w.source.Name() }

// Tick performs one read-diff-broadcast cycle. A read failure is logged and
// treated as "no change": it never crashes the loop, never clears the last
// delivered snapshot, and never reaches clients.
func (w *Watcher) Tick(ctx context.Context) {
	snapshot, err := w.source.Read(ctx)
	if err != nil {
		w.metrics.WatcherReadFailures.WithLabelValues(w.source.Name()).Inc()
		w.logger.Warn("snapshot read failed, treating as unchanged", zap.Error(err))
		return
	}

	normalized, err := normalize(snapshot)
	if err != nil {
		w.metrics.WatcherReadFailures.WithLabelValues(w.source.Name()).Inc()
		w.logger.Warn("snapshot not normalizable, treating as unchanged", zap.Error(err))
		return
	}

	if w.primed && reflect.DeepEqual(w.last, normalized) {
		return
	}
	w.last = normalized
	w.primed = true

	w.dispatcher.BroadcastToRoom(w.room, types.NewEvent(w.eventType, w.room, snapshot, w.source.Origin()))
	w.logger.Debug("change broadcast", zap.String("room", w.room))
}

// normalize round-trips v through JSON into the untyped form so that typed
// and untyped snapshots of the same content compare equal, and so the diff
// is structural rather than textual. The original approach of comparing
// serialized strings is sensitive to key order; deep comparison of the
// decoded value is not.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
