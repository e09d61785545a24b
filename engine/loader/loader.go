package loader

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-runtime/common"
	"go.uber.org/zap"
)

// Result is the outcome of one prefetched asset.
type Result struct {
	Name    string
	Content Content
	Err     error
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.Mutex

	source    Source
	workers   int
	queueSize int

	pool      worker.DynamicWorkerPool
	pending   sync.WaitGroup
	inflight  int
	nextID    int
	completed []Result
	closed    bool
}

// Loader supplies (raw bytes, descriptor) pairs to the engine. Load runs on the caller's goroutine;
// Prefetch decodes on a worker pool and hands results back through Drain so GPU uploads stay on the
// render thread.
type Loader interface {
	// Load reads and decodes name synchronously.
	//
	// Parameters:
	//   - name: the asset name
	//
	// Returns:
	//   - Content: the decoded content
	//   - error: an error wrapping ErrContentUnavailable
	Load(name string) (Content, error)

	// Prefetch queues names for background loading. It blocks only while the task queue is full.
	//
	// Parameters:
	//   - names: the assets to load
	Prefetch(names ...string)

	// Drain returns the prefetches completed since the last call, in completion order. It never blocks.
	//
	// Returns:
	//   - []Result: the completed results, nil when none
	Drain() []Result

	// Pending returns how many prefetches have not completed yet.
	Pending() int

	// Wait blocks until every queued prefetch has completed.
	Wait()

	// Close stops the worker pool. Prefetches queued after Close complete with ErrClosed.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a Loader reading from the source set with WithSource.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the loader
//   - error: an error if no source was configured
func NewLoader(options ...LoaderBuilderOption) (Loader, error) {
	l := &loader{
		workers:   2,
		queueSize: 64,
	}
	for _, option := range options {
		option(l)
	}
	if l.source == nil {
		return nil, fmt.Errorf("loader: no content source")
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, l.queueSize, time.Second)
	return l, nil
}

func (l *loader) Load(name string) (Content, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return Content{}, fmt.Errorf("%w: %s: %w", ErrContentUnavailable, name, ErrClosed)
	}

	data, err := l.source.Open(name)
	if err != nil {
		return Content{}, fmt.Errorf("%w: %w", ErrContentUnavailable, err)
	}
	c, err := decode(name, data)
	if err != nil {
		return Content{}, fmt.Errorf("%w: %w", ErrContentUnavailable, err)
	}
	return c, nil
}

func (l *loader) Prefetch(names ...string) {
	for _, name := range names {
		l.mu.Lock()
		if l.closed {
			l.completed = append(l.completed, Result{
				Name: name,
				Err:  fmt.Errorf("%w: %s: %w", ErrContentUnavailable, name, ErrClosed),
			})
			l.mu.Unlock()
			continue
		}
		id := l.nextID
		l.nextID++
		l.inflight++
		l.pending.Add(1)
		l.mu.Unlock()

		l.pool.SubmitTask(worker.Task{
			ID:      id,
			Payload: name,
			Do: func() (any, error) {
				defer l.pending.Done()
				c, err := l.Load(name)
				l.complete(Result{Name: name, Content: c, Err: err})
				return c, err
			},
		})
	}
}

func (l *loader) complete(r Result) {
	if r.Err != nil {
		common.Logger().Debug("prefetch failed", zap.String("name", r.Name), zap.Error(r.Err))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--
	l.completed = append(l.completed, r)
}

func (l *loader) Drain() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.completed) == 0 {
		return nil
	}
	out := l.completed
	l.completed = nil
	return out
}

func (l *loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight
}

func (l *loader) Wait() {
	l.pending.Wait()
}

func (l *loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.pending.Wait()
	l.pool.Stop()
	if c, ok := l.source.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			common.Logger().Warn("failed to close content source", zap.Error(err))
		}
	}
}
