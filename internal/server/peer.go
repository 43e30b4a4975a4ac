package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeusync/ardice/internal/core/events/bus"
	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/protocol"
	"github.com/zeusync/ardice/internal/table"
)

// peer is one connected client, whatever transport carries it. Inbound frames
// go through handle; outbound frames are queued on out and drained by the
// transport's writer until done is closed.
type peer struct {
	id            string
	transport     string
	table         *table.Table
	submitTimeout time.Duration
	logger        log.Log

	out       chan protocol.Envelope
	done      chan struct{}
	closeOnce sync.Once

	subMu sync.Mutex
	sub   bus.Subscription
}

// newPeer builds a peer for tableID. It receives nothing until joined.
func newPeer(tableID, transport string, buffer int, submitTimeout time.Duration, logger log.Log) *peer {
	p := &peer{
		id:            uuid.NewString(),
		transport:     transport,
		submitTimeout: submitTimeout,
		out:           make(chan protocol.Envelope, buffer),
		done:          make(chan struct{}),
	}
	p.logger = logger.With(
		log.String("peer_id", p.id),
		log.String("transport", transport),
		log.String("table", tableID))
	return p
}

// joined records the table and subscription once Registry.Subscribe succeeds.
// onBatch may already be running, so sub is guarded.
func (p *peer) joined(t *table.Table, sub bus.Subscription) {
	p.table = t

	p.subMu.Lock()
	defer p.subMu.Unlock()
	select {
	case <-p.done:
		_ = sub.Cancel()
	default:
		p.sub = sub
	}
}

// onBatch runs on the table loop, so it only ever queues.
func (p *peer) onBatch(b table.Batch) {
	envs, err := protocol.EncodeBatch(b)
	if err != nil {
		p.logger.Error("Failed to encode commands", log.Uint64("seq", b.Seq), log.Error(err))
		return
	}
	for _, env := range envs {
		if !p.enqueue(env) {
			return
		}
	}
}

// enqueue never blocks. A peer that cannot keep up is disconnected rather
// than allowed to stall its table.
func (p *peer) enqueue(env protocol.Envelope) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.out <- env:
		return true
	default:
		p.logger.Warn("Dropping peer", log.Int("buffer", cap(p.out)), log.Error(ErrPeerOverflow))
		p.close()
		return false
	}
}

// handle processes one inbound frame. Commands caused by the frame reach the
// peer through its table subscription; handle itself only answers with
// snapshots and errors.
func (p *peer) handle(ctx context.Context, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		p.logger.Debug("Rejected frame", log.Error(err))
		p.enqueue(protocol.EncodeError(0, err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	defer cancel()

	if env.Type == protocol.TypeSnapshotRequest {
		snap, err := p.table.Snapshot(ctx)
		if err != nil {
			p.enqueue(protocol.EncodeError(env.Seq, err))
			return
		}
		frame, err := protocol.EncodeSnapshot(env.Seq, p.table.ID(), snap)
		if err != nil {
			p.enqueue(protocol.EncodeError(env.Seq, err))
			return
		}
		p.enqueue(frame)
		return
	}

	ev, err := env.Event()
	if err != nil {
		p.enqueue(protocol.EncodeError(env.Seq, err))
		return
	}
	if _, err = p.table.Submit(ctx, env.Seq, ev); err != nil {
		p.enqueue(protocol.EncodeError(env.Seq, err))
	}
}

// close detaches the peer from its table. out is left open; writers stop on done.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.subMu.Lock()
		if p.sub != nil {
			_ = p.sub.Cancel()
		}
		p.subMu.Unlock()
		p.logger.Debug("Peer closed")
	})
}
