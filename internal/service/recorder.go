package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
)

type ClickCounter interface {
	IncrementClicks(ctx context.Context, id uuid.UUID, delta int64) error
}

type RecorderConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		QueueSize:     1000,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		WriteTimeout:  10 * time.Second,
	}
}

// Recorder turns visits into click events off the redirect path. Visits
// are queued by Submit and written in batches by a single background
// worker; each batch is appended to the event log first and only then
// added to the link counters, so a failure in between undercounts and
// never overcounts.
type Recorder struct {
	counter ClickCounter
	events  EventWriter
	geo     Locator
	cfg     RecorderConfig

	queue     chan types.Visit
	done      chan struct{}
	startOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

func NewRecorder(counter ClickCounter, events EventWriter, geo Locator, cfg RecorderConfig) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Recorder{
		counter: counter,
		events:  events,
		geo:     geo,
		cfg:     cfg,
		queue:   make(chan types.Visit, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the background worker. Calling it more than once is a no-op.
func (r *Recorder) Start() {
	r.startOnce.Do(func() { go r.worker() })
}

// Submit hands a visit to the worker without blocking. It reports false
// when the visit was dropped because the queue is full or closed.
func (r *Recorder) Submit(v types.Visit) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		slog.Warn("Click recorder closed, dropping click", "link_id", v.LinkID)
		return false
	}
	select {
	case r.queue <- v:
		return true
	default:
		slog.Warn("Click queue full, dropping click", "link_id", v.LinkID)
		return false
	}
}

// Record writes a single visit synchronously: one event, then a +1 on the
// link's counter. Nothing is retried.
func (r *Recorder) Record(ctx context.Context, v types.Visit) error {
	return r.write(ctx, []types.ClickEvent{r.event(v)})
}

// Close stops accepting visits, flushes what is queued and waits for the
// worker to exit.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.Start()
	<-r.done
}

func (r *Recorder) worker() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]types.Visit, 0, r.cfg.BatchSize)
	for {
		select {
		case v, ok := <-r.queue:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, v)
			if len(batch) >= r.cfg.BatchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) flush(visits []types.Visit) {
	if len(visits) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	events := make([]types.ClickEvent, len(visits))
	for i, v := range visits {
		events[i] = r.event(v)
	}
	if err := r.write(ctx, events); err != nil {
		slog.Error("RecordClicks error", "error", err, "clicks", len(events))
	}
}

func (r *Recorder) write(ctx context.Context, events []types.ClickEvent) error {
	if err := r.events.InsertClicks(ctx, events); err != nil {
		return err
	}

	perLink := make(map[uuid.UUID]int64)
	for _, e := range events {
		perLink[e.LinkID]++
	}

	var firstErr error
	for id, n := range perLink {
		if err := r.counter.IncrementClicks(ctx, id, n); err != nil {
			slog.Warn("Failed to increment click counter", "link_id", id, "delta", n, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Recorder) event(v types.Visit) types.ClickEvent {
	info := ParseUserAgent(v.UserAgent)
	var country, city string
	if r.geo != nil {
		country, city = r.geo.Locate(v.IP)
	}
	at := v.At
	if at.IsZero() {
		at = time.Now()
	}
	return types.ClickEvent{
		ID:        uuid.New(),
		LinkID:    v.LinkID,
		IP:        v.IP,
		UserAgent: v.UserAgent,
		Device:    info.Device,
		Browser:   info.Browser,
		OS:        info.OS,
		Referrer:  v.Referrer,
		Country:   country,
		City:      city,
		CreatedAt: at.UTC(),
	}
}
