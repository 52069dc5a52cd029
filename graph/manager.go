package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/events"
)

// DefaultMinStepLength is the pacing interval for emitter executors (spec
// §4.12: "~250 ms of wall time equivalent to one emission step").
const DefaultMinStepLength = 250 * time.Millisecond

// DefaultMinStepNonGenerating is the pacing interval for purely-receiving
// executors (spec §4.12: "~16 ms to keep latency low").
const DefaultMinStepNonGenerating = 16 * time.Millisecond

// frameQueue is the unbounded, lock-protected FIFO backing one edge (spec
// §4.12, §5: "each Frame queue has exactly one producer and one consumer").
type frameQueue struct {
	mu  sync.Mutex
	buf []audio.Frame
}

func (q *frameQueue) push(f audio.Frame) {
	q.mu.Lock()
	q.buf = append(q.buf, f)
	q.mu.Unlock()
}

// tryPop returns the oldest queued Frame, or ok=false if the queue is
// empty, matching the non-blocking try_pop semantics of spec §4.12.
func (q *frameQueue) tryPop() (f audio.Frame, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return audio.Frame{}, false
	}
	f, q.buf = q.buf[0], q.buf[1:]
	return f, true
}

// nodeStats tracks per-node runtime counters surfaced in the run summary
// event the manager emits on stop (spec §4.13 supplement: graph_stopped).
type nodeStats struct {
	startedAt      time.Time
	framesEmitted  int64
	framesReceived int64
	failed         atomic.Bool
}

// Manager is the graph manager (spec §4.12, C11): owns every node, the edge
// queues wiring them together, and one NodeExecutor goroutine per node.
type Manager struct {
	nodes    map[string]Node
	edges    []Edge
	settings Settings
	bus      *events.Bus
	log      *slog.Logger

	minStepLength        time.Duration
	minStepNonGenerating time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   map[string]*nodeStats
	done    chan struct{}

	incoming map[string][]queueSource // node name -> queues feeding it, tagged by source
	outgoing map[string][]queueTarget // node name -> queues it feeds, with target name
}

type queueTarget struct {
	name  string
	queue *frameQueue
}

type queueSource struct {
	name  string
	queue *frameQueue
}

// NewManager returns a Manager over the given built nodes and validated
// edges. bus may be nil, in which case events are dropped.
func NewManager(nodes map[string]Node, edges []Edge, settings Settings, bus *events.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	minStep := DefaultMinStepLength
	if settings.InputIntervalSecs > 0 {
		minStep = time.Duration(settings.InputIntervalSecs * float64(time.Second))
	}
	minStepNG := DefaultMinStepNonGenerating
	if settings.ProcessorIntervalSecs > 0 {
		minStepNG = time.Duration(settings.ProcessorIntervalSecs * float64(time.Second))
	}
	return &Manager{
		nodes:                nodes,
		edges:                edges,
		settings:             settings,
		bus:                  bus,
		log:                  log,
		minStepLength:        minStep,
		minStepNonGenerating: minStepNG,
	}
}

// Execute builds the edge queues, acquires every Contextual node, and
// starts one NodeExecutor goroutine per node (spec §4.12 "Startup"). A
// node whose Acquire fails is logged and excluded from execution; the rest
// of the graph proceeds (spec §7 "partial failure is isolated per node").
// If settings.Limits.RunTimeSeconds > 0, a watchdog calls Stop after that
// many seconds.
func (m *Manager) Execute(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.stats = make(map[string]*nodeStats, len(m.nodes))
	m.incoming = make(map[string][]queueSource, len(m.nodes))
	m.outgoing = make(map[string][]queueTarget, len(m.nodes))

	for _, e := range m.edges {
		q := &frameQueue{}
		m.incoming[e.Target] = append(m.incoming[e.Target], queueSource{name: e.Source, queue: q})
		m.outgoing[e.Source] = append(m.outgoing[e.Source], queueTarget{name: e.Target, queue: q})
	}

	var active []string
	for name, n := range m.nodes {
		m.stats[name] = &nodeStats{startedAt: time.Now()}
		if c, ok := n.(Contextual); ok {
			if err := c.Acquire(runCtx); err != nil {
				m.stats[name].failed.Store(true)
				m.log.Error("node acquire failed, excluding from run", "component", "graph.manager", "node", name, "err", err)
				continue
			}
		}
		active = append(active, name)
	}
	m.mu.Unlock()

	for _, name := range active {
		m.wg.Add(1)
		go m.runExecutor(runCtx, name, m.nodes[name])
	}

	if m.settings.Limits.RunTimeSeconds > 0 {
		d := time.Duration(m.settings.Limits.RunTimeSeconds * float64(time.Second))
		go func() {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				m.Stop()
			case <-runCtx.Done():
			}
		}()
	}

	return nil
}

// runExecutor is the NodeExecutor loop of spec §4.12: drain every incoming
// queue into Receive, poll Emit if the node is an Emitter, forward emitted
// Frames to outgoing queues, then pace via a rate.Limiter sized to
// min_step_length (emitters) or min_step_non_generating (pure receivers).
func (m *Manager) runExecutor(ctx context.Context, name string, n Node) {
	defer m.wg.Done()

	receiver, isReceiver := n.(Receiver)
	emitter, isEmitter := n.(Emitter)

	step := m.minStepNonGenerating
	if isEmitter {
		step = m.minStepLength
	}
	limiter := rate.NewLimiter(rate.Every(step), 1)
	stats := m.stats[name]

	defer func() {
		if c, ok := n.(Contextual); ok {
			if err := c.Release(); err != nil {
				m.log.Error("node release failed", "component", "graph.manager", "node", name, "err", err)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if isReceiver {
			for _, qs := range m.incoming[name] {
				for {
					f, ok := qs.queue.tryPop()
					if !ok {
						break
					}
					if err := receiver.Receive(qs.name, f); err != nil {
						m.log.Error("node receive failed", "component", "graph.manager", "node", name, "err", err)
					} else {
						stats.framesReceived++
					}
				}
			}
		}

		if isEmitter {
			f, err := emitter.Emit(ctx)
			if err != nil {
				m.log.Error("node emit failed", "component", "graph.manager", "node", name, "err", err)
			} else if f != nil {
				stats.framesEmitted++
				for _, t := range m.outgoing[name] {
					t.queue.push(*f)
				}
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}
}

// Stop flips running to false, cancels every executor's context, joins
// them, and emits a graph_stopped summary event (spec §4.12 "Shutdown",
// SUPPLEMENTED FEATURES run summary). Stop is idempotent and safe to call
// from a signal handler.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	stats := m.stats
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	if m.bus != nil {
		for name, s := range stats {
			m.bus.Publish("graph_stopped", name, events.Context{
				Message: fmt.Sprintf("uptime=%s frames_received=%d frames_emitted=%d failed=%v",
					time.Since(s.startedAt).Round(time.Millisecond), s.framesReceived, s.framesEmitted, s.failed.Load()),
			})
		}
	}

	if done != nil {
		close(done)
	}
}

// Done returns a channel closed once the graph has fully stopped, whether
// triggered by an external Stop() call or the run_time_seconds watchdog.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}
