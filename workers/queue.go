package workers

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"stagebased/config"
	"stagebased/errors"

	"github.com/rs/zerolog"
)

/************************************************
/**** MARK: TASK NAMES ****/
/************************************************/
const TASK_SEND_NEXT_MESSAGE = "send_next_message"
const TASK_SCHEDULE_CREATE = "schedule_create"
const TASK_SCHEDULE_DISABLE = "schedule_disable"
const TASK_FIRE_METRIC = "fire_metric"
const TASK_SCHEDULED_METRICS = "scheduled_metrics"

const maxBackoff = time.Minute

var ErrQueueFull = errors.New("task queue full")
var ErrQueueStopped = errors.New("task queue stopped")

var errNoRetry = errors.New("no retry")

// NoRetry marks err as permanent; the queue runs the task only once.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, errNoRetry)
}

// Task is one unit of queued work. Key identifies the subject (usually a
// subscription id) in logs.
type Task struct {
	Name string
	Key  string
	Run  func(ctx context.Context) error
}

// Queue is an in-process worker pool with bounded retry and exponential
// backoff. In eager mode Enqueue runs the task inline, once, and returns
// its error.
type Queue struct {
	conf   config.WorkersConfig
	log    zerolog.Logger
	tasks  chan Task
	onDone func(name string, err error)

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewQueue(conf config.WorkersConfig, log zerolog.Logger) *Queue {
	size := conf.QueueSize
	if size <= 0 {
		size = 1
	}
	return &Queue{
		conf:  conf,
		log:   log.With().Str("component", "queue").Logger(),
		tasks: make(chan Task, size),
	}
}

func (q *Queue) Eager() bool { return q.conf.Eager }

// Start launches the workers. Cancelling ctx does not stop them: in-flight
// and queued tasks keep running until Stop drains the queue.
func (q *Queue) Start(ctx context.Context) {
	if q.conf.Eager {
		return
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	n := q.conf.Count
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for t := range q.tasks {
				q.run(ctx, t)
			}
		}()
	}
	q.log.Info().Int("workers", n).Int("queue_size", cap(q.tasks)).Msg("task queue started")
}

// Stop refuses new tasks, drains what is queued and waits for the workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.tasks)
	cancel := q.cancel
	q.mu.Unlock()

	q.wg.Wait()
	if cancel != nil {
		cancel()
	}
}

func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	if q.conf.Eager {
		err := t.Run(ctx)
		q.finish(t, err)
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return errors.Wrapf(ErrQueueStopped, "enqueue %s", t.Name)
	}
	select {
	case q.tasks <- t:
		return nil
	default:
		return errors.Wrapf(ErrQueueFull, "enqueue %s", t.Name)
	}
}

func (q *Queue) run(ctx context.Context, t Task) {
	var err error
	for attempt := 1; ; attempt++ {
		err = t.Run(ctx)
		if err == nil || errors.Is(err, errNoRetry) || attempt > q.conf.RetryMax {
			break
		}
		delay := q.backoff(attempt)
		q.log.Warn().Err(err).Str("task", t.Name).Str("key", t.Key).Int("attempt", attempt).
			Dur("retry_in", delay).Msg("task failed, retrying")
		select {
		case <-ctx.Done():
			q.finish(t, ctx.Err())
			return
		case <-time.After(delay):
		}
	}
	q.finish(t, err)
}

func (q *Queue) finish(t Task, err error) {
	if err != nil {
		q.log.Error().Err(err).Str("task", t.Name).Str("key", t.Key).Msg("task failed")
	}
	if q.onDone != nil {
		q.onDone(t.Name, err)
	}
}

// base * 2^(attempt-1) with +/-20% jitter, capped at maxBackoff
func (q *Queue) backoff(attempt int) time.Duration {
	base := q.conf.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(exp * (1 + (rand.Float64()*2-1)*0.2))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
