package queue

import (
	"context"
	"sync"
	"time"

	"log/slog"
)

// statsWindow is how many recent samples the rolling wait/processing
// averages cover.
const statsWindow = 256

// Processor runs submitted tasks under a shared concurrency cap.
type Processor struct {
	cfg Config

	mu      sync.Mutex
	levels  [numPriorities][]*item
	stopped bool

	slots  chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	runCtx context.Context

	processed int64
	failed    int64
	inFlight  int
	waits     *sampleRing
	runs      *sampleRing

	now    func() time.Time
	logger *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithClock overrides the processor's time source.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// WithLogger sets the logger used for lifecycle and overflow events.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// NewProcessor builds a processor. Call Start before submitting queued
// work; high-priority tasks run as soon as the processor exists.
func NewProcessor(cfg Config, opts ...ProcessorOption) *Processor {
	cfg.applyDefaults()
	p := &Processor{
		cfg:    cfg,
		slots:  make(chan struct{}, cfg.MaxConcurrency),
		stopCh: make(chan struct{}),
		runCtx: context.Background(),
		waits:  newSampleRing(statsWindow),
		runs:   newSampleRing(statsWindow),
		now:    time.Now,
		logger: slog.Default().With("component", "queue"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit hands a task to the processor and returns a channel that will
// receive exactly one Result.
//
// High-priority tasks skip the backlog and start once a slot frees.
// Other priorities wait for the batch loop; Submit fails with
// ErrQueueFull when the backlog is at capacity.
func (p *Processor) Submit(priority Priority, task Task) (<-chan Result, error) {
	it := &item{
		task:     task,
		priority: priority,
		enqueued: p.now(),
		result:   make(chan Result, 1),
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, ErrStopped
	}
	if priority == PriorityHigh {
		p.mu.Unlock()
		p.dispatch(it)
		return it.result, nil
	}
	if p.backlogLocked() >= p.cfg.MaxQueueSize {
		p.mu.Unlock()
		p.logger.Warn("backlog full, rejecting task", "priority", priority.String())
		return nil, ErrQueueFull
	}
	p.levels[priority] = append(p.levels[priority], it)
	p.mu.Unlock()
	return it.result, nil
}

func (p *Processor) backlogLocked() int {
	n := 0
	for _, level := range p.levels {
		n += len(level)
	}
	return n
}

// Start launches the drain loop. Tasks run under ctx; cancelling it is
// visible to the tasks but does not stop the loop, use Stop for that.
func (p *Processor) Start(ctx context.Context) {
	p.runCtx = ctx
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.drainBatch()
			}
		}
	}()
	p.logger.Info("batch processor started",
		"max_concurrency", p.cfg.MaxConcurrency,
		"batch_size", p.cfg.BatchSize,
		"poll_interval", p.cfg.PollInterval.String())
}

// Stop shuts the processor down: the drain loop exits, in-flight tasks
// finish, and still-queued tasks resolve with ErrStopped.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.levels {
		for _, it := range p.levels[i] {
			it.result <- Result{Err: ErrStopped}
		}
		p.levels[i] = nil
	}
	p.logger.Info("batch processor stopped")
}

// drainBatch takes one batch from the highest non-empty level and starts
// each task in order.
func (p *Processor) drainBatch() {
	p.mu.Lock()
	var batch []*item
	for i := PriorityMedium; i <= PriorityBackground; i++ {
		if len(p.levels[i]) == 0 {
			continue
		}
		n := min(p.cfg.BatchSize, len(p.levels[i]))
		batch = p.levels[i][:n]
		p.levels[i] = p.levels[i][n:]
		break
	}
	p.mu.Unlock()

	// Slots are claimed here, in batch order, so earlier tasks always
	// start before later ones.
	for _, it := range batch {
		select {
		case p.slots <- struct{}{}:
			p.startClaimed(it)
		case <-p.stopCh:
			it.result <- Result{Err: ErrStopped}
		}
	}
}

// dispatch runs a high-priority task, waiting only for a slot.
func (p *Processor) dispatch(it *item) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.slots <- struct{}{}
		p.run(it)
	}()
}

// startClaimed runs a queued task whose slot is already held.
func (p *Processor) startClaimed(it *item) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(it)
	}()
}

func (p *Processor) run(it *item) {
	defer func() { <-p.slots }()

	started := p.now()
	waited := started.Sub(it.enqueued)

	p.mu.Lock()
	p.inFlight++
	p.mu.Unlock()

	value, err := it.task(p.runCtx)
	elapsed := p.now().Sub(started)

	p.mu.Lock()
	p.inFlight--
	p.processed++
	if err != nil {
		p.failed++
	}
	p.waits.add(waited)
	p.runs.add(elapsed)
	p.mu.Unlock()

	it.result <- Result{Value: value, Err: err, Waited: waited, Processed: elapsed}
}

// Snapshot is a point-in-time view of the processor for the statistics
// surface.
type Snapshot struct {
	Pending       map[string]int
	InFlight      int
	Processed     int64
	Failed        int64
	AvgWait       time.Duration
	AvgProcessing time.Duration
}

// Stats returns the current snapshot. Averages roll over the most recent
// completions.
func (p *Processor) Stats() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	pending := make(map[string]int, numPriorities)
	for i := Priority(0); i < numPriorities; i++ {
		pending[i.String()] = len(p.levels[i])
	}
	return Snapshot{
		Pending:       pending,
		InFlight:      p.inFlight,
		Processed:     p.processed,
		Failed:        p.failed,
		AvgWait:       p.waits.avg(),
		AvgProcessing: p.runs.avg(),
	}
}

// sampleRing keeps the last cap duration samples for a rolling average.
type sampleRing struct {
	samples []time.Duration
	next    int
	full    bool
}

func newSampleRing(cap int) *sampleRing {
	return &sampleRing{samples: make([]time.Duration, cap)}
}

func (r *sampleRing) add(d time.Duration) {
	r.samples[r.next] = d
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

func (r *sampleRing) avg() time.Duration {
	n := r.next
	if r.full {
		n = len(r.samples)
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range r.samples[:n] {
		sum += d
	}
	return sum / time.Duration(n)
}
