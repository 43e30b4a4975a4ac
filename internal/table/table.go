// Package table hosts one tracker per shared AR session. Every event for a
// table is applied on that table's own goroutine, so the tracker itself never
// sees concurrent calls.
package table

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/ardice/internal/core/events/bus"
	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/core/tracker"
)

const (
	commandsTopic = "table"
	commandsEvent = "commands"
)

type Config struct {
	RollDuration      float64
	RollOnPlace       bool
	DefaultHalfHeight float64
	MaxObjects        int
	// RollSeed makes rolls reproducible. Ignored when Source is set.
	RollSeed string
	Source   tracker.QuarterTurnSource
}

// Snapshot is the table state as seen between two events.
type Snapshot struct {
	tracker.Snapshot
	Paused bool
}

type request struct {
	seq      uint64
	event    Event
	snapshot bool
	reply    chan result
}

type result struct {
	commands []tracker.Command
	snapshot Snapshot
	err      error
}

type Table struct {
	id      string
	cfg     Config
	tracker *tracker.Tracker
	bus     bus.EventBus
	logger  log.Log

	requests   chan request
	done       chan struct{}
	closeOnce  sync.Once
	lastActive atomic.Int64

	// owned by the loop goroutine
	paused bool
}

// New creates a table and starts its event loop.
func New(id string, cfg Config, logger log.Log) *Table {
	if logger == nil {
		logger = log.Provide()
	}
	source := cfg.Source
	if source == nil && cfg.RollSeed != "" {
		source = tracker.NewSeededSource(cfg.RollSeed + "/" + id)
	}

	t := &Table{
		id:  id,
		cfg: cfg,
		tracker: tracker.New(tracker.Config{
			Source:       source,
			RollDuration: cfg.RollDuration,
			MaxObjects:   cfg.MaxObjects,
		}),
		bus:      bus.New(),
		logger:   logger.With(log.String("component", "table"), log.String("table", id)),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	t.bus.AddObserver(&deliveryLogger{logger: t.logger})
	t.lastActive.Store(time.Now().UnixNano())

	go t.run()

	t.logger.Debug("Table opened")
	return t
}

func (t *Table) ID() string {
	return t.id
}

// Submit applies ev and returns the commands it produced. The same commands are
// published to every subscriber before Submit returns. If ctx ends after the
// event was accepted the event is still applied.
func (t *Table) Submit(ctx context.Context, seq uint64, ev Event) ([]tracker.Command, error) {
	res, err := t.do(ctx, request{seq: seq, event: ev})
	if err != nil {
		return nil, err
	}
	return res.commands, res.err
}

func (t *Table) Snapshot(ctx context.Context) (Snapshot, error) {
	res, err := t.do(ctx, request{snapshot: true})
	if err != nil {
		return Snapshot{}, err
	}
	return res.snapshot, nil
}

// Subscribe registers fn for every command batch. fn runs on the table loop and
// must not block.
func (t *Table) Subscribe(fn func(Batch)) (bus.Subscription, error) {
	return t.bus.Subscribe(commandsTopic, commandsEvent, func(e bus.Event) error {
		if b, ok := e.Data().(Batch); ok {
			fn(b)
		}
		return nil
	})
}

// Subscribers reports how many command subscribers are attached.
func (t *Table) Subscribers() int {
	subs := 0
	for _, topic := range t.bus.GetTopics() {
		subs += topic.Subs
	}
	return subs
}

// IdleFor reports how long ago the table last accepted an event.
func (t *Table) IdleFor() time.Duration {
	return time.Since(time.Unix(0, t.lastActive.Load()))
}

// Close stops the event loop. Later calls to Submit fail with ErrTableClosed.
func (t *Table) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.logger.Debug("Table closed")
	})
}

func (t *Table) do(ctx context.Context, req request) (result, error) {
	req.reply = make(chan result, 1)

	select {
	case <-t.done:
		return result{}, ErrTableClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return result{}, err
	}

	select {
	case <-t.done:
		return result{}, ErrTableClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	case t.requests <- req:
	}

	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (t *Table) run() {
	for {
		select {
		case <-t.done:
			return
		case req := <-t.requests:
			req.reply <- t.handle(req)
		}
	}
}

func (t *Table) handle(req request) result {
	if req.snapshot {
		return result{snapshot: Snapshot{Snapshot: t.tracker.Snapshot(), Paused: t.paused}}
	}

	if t.paused {
		if _, ok := req.event.(ResumeRequested); !ok {
			return result{err: ErrSessionPaused}
		}
	}

	start := time.Now()
	t.lastActive.Store(start.UnixNano())
	cmds, err := t.apply(req.event)
	if err != nil {
		t.logger.Warn("Event rejected",
			log.String("event", eventName(req.event)),
			log.Uint64("seq", req.seq),
			log.Error(err))
		return result{err: err}
	}

	t.logger.Debug("Event applied",
		log.String("event", eventName(req.event)),
		log.Uint64("seq", req.seq),
		log.Int("commands", len(cmds)),
		log.Duration("took", time.Since(start)))

	if len(cmds) > 0 {
		batch := Batch{Table: t.id, Seq: req.seq, Commands: cmds}
		if err = t.bus.Publish(commandsTopic, bus.NewEvent(commandsEvent, t.id, batch)); err != nil {
			t.logger.Warn("Command subscriber failed", log.Error(err))
		}
	}
	return result{commands: cmds}
}

func (t *Table) apply(ev Event) ([]tracker.Command, error) {
	switch e := ev.(type) {
	case SurfaceDetected:
		if cmd, ok := t.tracker.OnSurfaceDetected(e.AnchorID, e.Geometry); ok {
			return []tracker.Command{cmd}, nil
		}
	case SurfaceUpdated:
		if cmd, ok := t.tracker.OnSurfaceUpdated(e.AnchorID, e.Geometry); ok {
			return []tracker.Command{cmd}, nil
		}
	case SurfaceRemoved:
		if cmd, ok := t.tracker.OnSurfaceRemoved(e.AnchorID); ok {
			return []tracker.Command{cmd}, nil
		}
	case PlaceRequested:
		return t.place(e)
	case RollRequested:
		if e.ObjectID != "" {
			if cmd, ok := t.tracker.Roll(e.ObjectID); ok {
				return []tracker.Command{cmd}, nil
			}
			return nil, nil
		}
		rolls := t.tracker.RollAll()
		cmds := make([]tracker.Command, len(rolls))
		for i, r := range rolls {
			cmds[i] = r
		}
		return cmds, nil
	case ClearRequested:
		removed := t.tracker.ClearAll()
		cmds := make([]tracker.Command, len(removed))
		for i, r := range removed {
			cmds[i] = r
		}
		if len(removed) > 0 {
			t.logger.Info("Table cleared", log.Int("removed", len(removed)))
		}
		return cmds, nil
	case PauseRequested:
		t.paused = true
	case ResumeRequested:
		t.paused = false
	default:
		return nil, ErrUnknownEvent
	}
	return nil, nil
}

func (t *Table) place(e PlaceRequested) ([]tracker.Command, error) {
	h := t.cfg.DefaultHalfHeight
	if e.HalfHeight != nil {
		h = *e.HalfHeight
	}

	var (
		obj   tracker.PlacedObject
		spawn tracker.SpawnCommand
		err   error
	)
	if e.AnchorID != "" {
		var hit bool
		obj, spawn, hit, err = t.tracker.PlaceOnSurface(e.AnchorID, e.Hit, h)
		if err == nil && !hit {
			return nil, nil
		}
	} else {
		obj, spawn, err = t.tracker.PlaceObject(e.Hit, h)
	}
	if err != nil {
		return nil, err
	}

	t.logger.Info("Die placed",
		log.String("object_id", obj.ID),
		log.Float64("x", obj.Position.X),
		log.Float64("y", obj.Position.Y),
		log.Float64("z", obj.Position.Z))

	cmds := []tracker.Command{spawn}
	if t.cfg.RollOnPlace {
		if roll, ok := t.tracker.Roll(obj.ID); ok {
			cmds = append(cmds, roll)
		}
	}
	return cmds, nil
}

func eventName(ev Event) string {
	if ev == nil {
		return "<nil>"
	}
	return string(ev.EventType())
}

type deliveryLogger struct {
	logger log.Log
}

func (d *deliveryLogger) OnPublish(string, string, bus.Event) {}

func (d *deliveryLogger) OnDelivered(_, _ string, handlers int, err error, took time.Duration) {
	if err != nil {
		d.logger.Warn("Command delivery failed", log.Int("handlers", handlers), log.Error(err))
		return
	}
	d.logger.Debug("Commands delivered", log.Int("handlers", handlers), log.Duration("took", took))
}
