// Package processor owns the background worker pool that runs blur jobs.
//
// Callers submit work with ApplyAsync and get results through a callback.
// Worker goroutines never invoke callbacks directly: every finished job is
// queued on a completion channel drained by a single dispatcher goroutine,
// so callbacks are serialized and never race each other or the submitter's
// resources. Cancellation is cooperative: a running job finishes, but its
// result is dropped at the delivery point and the callback never fires.
package processor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blurkit/blurkit/pkg/cache"
	"github.com/blurkit/blurkit/pkg/convolve"
	"github.com/blurkit/blurkit/pkg/kernel"
	"github.com/blurkit/blurkit/pkg/pixbuf"
)

const (
	// MaxThreads caps the worker pool size.
	MaxThreads = 8

	defaultQueueDepth = 64
)

var (
	// ErrInvalidIntensity reports an intensity outside [0,10] or NaN/Inf.
	ErrInvalidIntensity = errors.New("invalid blur intensity")

	// ErrQueueFull reports that the job queue cannot accept a submission.
	ErrQueueFull = errors.New("job queue full")

	// ErrClosed reports a submission after Close.
	ErrClosed = errors.New("processor closed")
)

// State tracks a request through its lifecycle.
type State int32

const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is delivered to the submitter's callback.
type Result struct {
	RequestID uint64
	Buffer    *pixbuf.Buffer
	Err       error
	Elapsed   time.Duration
	FromCache bool
}

// Callback receives a completed (or failed) blur result. Callbacks for
// asynchronous results always run on the processor's dispatcher goroutine,
// never concurrently with one another.
type Callback func(Result)

// Config configures a Processor.
type Config struct {
	// MaxWidth and MaxHeight declare the largest image the processor will
	// accept.
	MaxWidth  int
	MaxHeight int

	// Threads is the worker count. 0 auto-detects the CPU count; the value
	// is clamped to [1,MaxThreads].
	Threads int

	// QueueDepth bounds pending submissions. 0 uses a default.
	QueueDepth int

	// Cache, when set, is consulted before dispatch and filled on success.
	Cache *cache.Cache

	// Logger receives debug-level job lifecycle events. nil discards.
	Logger *slog.Logger
}

type request struct {
	id          uint64
	buf         *pixbuf.Buffer
	hash        uint64
	intensity   float64
	progressive bool
	cb          Callback
	state       atomic.Int32
	submitted   time.Time
}

func (r *request) setState(s State) { r.state.Store(int32(s)) }

type completion struct {
	req     *request
	buf     *pixbuf.Buffer
	err     error
	elapsed time.Duration
}

// Processor dispatches blur jobs onto a fixed worker pool.
type Processor struct {
	cfg     Config
	threads int
	log     *slog.Logger

	jobs        chan *request
	completions chan completion

	mu     sync.Mutex
	active map[uint64]*request

	nextID  atomic.Uint64
	closed  atomic.Bool
	workers sync.WaitGroup
	done    chan struct{} // dispatcher exit
}

// New validates the configuration and starts the worker pool.
func New(cfg Config) (*Processor, error) {
	if cfg.MaxWidth < 1 || cfg.MaxWidth > pixbuf.MaxDim ||
		cfg.MaxHeight < 1 || cfg.MaxHeight > pixbuf.MaxDim {
		return nil, fmt.Errorf("%w: max dimensions %dx%d outside [1,%d]",
			pixbuf.ErrInvalidBuffer, cfg.MaxWidth, cfg.MaxHeight, pixbuf.MaxDim)
	}
	threads := cfg.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	if threads < 1 {
		threads = 1
	}
	if threads > MaxThreads {
		threads = MaxThreads
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &Processor{
		cfg:         cfg,
		threads:     threads,
		log:         log,
		jobs:        make(chan *request, depth),
		completions: make(chan completion, depth),
		active:      make(map[uint64]*request),
		done:        make(chan struct{}),
	}
	for i := 0; i < threads; i++ {
		p.workers.Add(1)
		// Each worker owns its scratch plane; jobs running concurrently
		// never share working storage. The plane starts empty and grows to
		// the largest image the worker actually processes, so accepting
		// MaxDim-sized input does not commit MaxDim-sized memory up front.
		go p.worker(i, convolve.NewScratch(0, 0))
	}
	go p.dispatch()
	return p, nil
}

// Threads reports the actual worker count after auto-detection and clamping.
func (p *Processor) Threads() int { return p.threads }

// Outstanding reports the number of queued or running requests.
func (p *Processor) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// ApplyAsync validates and submits a blur job, returning its request id.
//
// Validation failures are returned synchronously and the callback never
// fires. Two fast paths deliver the callback synchronously on the calling
// goroutine before ApplyAsync returns: intensity 0 (identity, the original
// buffer is handed back untouched and never cached) and a result cache hit.
func (p *Processor) ApplyAsync(buf *pixbuf.Buffer, intensity float64, progressive bool, cb Callback) (uint64, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if math.IsNaN(intensity) || math.IsInf(intensity, 0) || intensity < 0 || intensity > kernel.MaxIntensity {
		return 0, fmt.Errorf("%w: %v not in [0,%v]", ErrInvalidIntensity, intensity, kernel.MaxIntensity)
	}
	if err := buf.Validate(); err != nil {
		return 0, err
	}
	if buf.Width > p.cfg.MaxWidth || buf.Height > p.cfg.MaxHeight {
		return 0, fmt.Errorf("%w: %dx%d exceeds declared maximum %dx%d",
			pixbuf.ErrInvalidBuffer, buf.Width, buf.Height, p.cfg.MaxWidth, p.cfg.MaxHeight)
	}

	id := p.nextID.Add(1)

	if intensity == 0 {
		cb(Result{RequestID: id, Buffer: buf})
		return id, nil
	}

	hash := buf.Hash()
	if p.cfg.Cache != nil {
		if hit, ok := p.cfg.Cache.Get(hash, intensity); ok {
			p.log.Debug("cache hit", "id", id, "intensity", intensity)
			cb(Result{RequestID: id, Buffer: hit, FromCache: true})
			return id, nil
		}
	}

	req := &request{
		id:          id,
		buf:         buf,
		hash:        hash,
		intensity:   intensity,
		progressive: progressive,
		cb:          cb,
		submitted:   time.Now(),
	}
	req.setState(StateQueued)

	p.mu.Lock()
	p.active[id] = req
	p.mu.Unlock()

	select {
	case p.jobs <- req:
	default:
		p.mu.Lock()
		delete(p.active, id)
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: %d pending jobs", ErrQueueFull, cap(p.jobs))
	}
	p.log.Debug("job queued", "id", id, "intensity", intensity, "progressive", progressive)
	return id, nil
}

// Cancel removes a queued or running request from the active table and
// reports whether it was found. A running job finishes its computation, but
// the dispatcher drops the result and the callback is never invoked.
func (p *Processor) Cancel(id uint64) bool {
	p.mu.Lock()
	req, ok := p.active[id]
	if ok {
		delete(p.active, id)
	}
	p.mu.Unlock()
	if ok {
		req.setState(StateCancelled)
		p.log.Debug("job cancelled", "id", id)
	}
	return ok
}

// Close shuts the pool down and waits for workers and the dispatcher.
//
// Calling Close with outstanding (queued or running) requests is a usage
// contract violation and panics; cancel or drain first.
func (p *Processor) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	outstanding := len(p.active)
	p.mu.Unlock()
	if outstanding != 0 {
		panic(fmt.Sprintf("processor: Close with %d outstanding requests", outstanding))
	}
	close(p.jobs)
	p.workers.Wait()
	close(p.completions)
	<-p.done
}

func (p *Processor) worker(n int, scratch *convolve.Scratch) {
	defer p.workers.Done()
	for req := range p.jobs {
		if !p.isActive(req.id) {
			// Cancelled while still queued; skip the work entirely.
			p.log.Debug("job skipped", "id", req.id, "worker", n)
			continue
		}
		req.setState(StateRunning)
		start := time.Now()
		buf, err := runJob(req, scratch)
		p.completions <- completion{req: req, buf: buf, err: err, elapsed: time.Since(start)}
	}
}

// runJob builds the kernel and runs the convolution, converting panics into
// job failures so one bad job cannot take the pool down.
func runJob(req *request, scratch *convolve.Scratch) (buf *pixbuf.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("blur job %d panicked: %v", req.id, r)
		}
	}()
	k, err := kernel.ForIntensity(req.intensity, req.progressive)
	if err != nil {
		return nil, err
	}
	return convolve.Separable(req.buf, k, scratch)
}

// dispatch is the single delivery point: it drains completions, drops
// cancelled results, fills the cache and invokes callbacks one at a time.
func (p *Processor) dispatch() {
	defer close(p.done)
	for c := range p.completions {
		req := c.req
		p.mu.Lock()
		_, live := p.active[req.id]
		if live {
			delete(p.active, req.id)
		}
		p.mu.Unlock()

		if !live {
			p.log.Debug("result dropped", "id", req.id, "state", State(req.state.Load()).String())
			continue
		}
		if c.err != nil {
			req.setState(StateFailed)
			p.log.Debug("job failed", "id", req.id, "err", c.err)
			req.cb(Result{RequestID: req.id, Err: c.err, Elapsed: c.elapsed})
			continue
		}
		req.setState(StateCompleted)
		if p.cfg.Cache != nil && !req.progressive {
			// Progressive results are interactive previews; only
			// full-quality buffers are worth keeping.
			p.cfg.Cache.Put(req.hash, req.intensity, c.buf)
		}
		p.log.Debug("job done", "id", req.id, "elapsed", c.elapsed)
		req.cb(Result{RequestID: req.id, Buffer: c.buf, Elapsed: c.elapsed})
	}
}

func (p *Processor) isActive(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[id]
	return ok
}
