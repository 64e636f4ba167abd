package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Task is a callback fired every Interval while the Poller runs
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Poller runs a set of interval tasks. Stop cancels every timer and only
// returns once no task callback is running or can run again.
type Poller struct {
	clock clockwork.Clock
	tasks []Task

	mutex   sync.Mutex
	cancel  context.CancelFunc
	running *conc.WaitGroup
}

func NewPoller(clock clockwork.Clock, tasks ...Task) *Poller {
	return &Poller{
		clock: clock,
		tasks: tasks,
	}
}

func (p *Poller) Running() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.running != nil
}

// Start launches one ticker per task. Starting a running Poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.running != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = conc.NewWaitGroup()

	for _, task := range p.tasks {
		ticker := p.clock.NewTicker(task.Interval)

		log.Debug().Str("task", task.Name).Dur("interval", task.Interval).Msg("Starting poller task")

		task := task
		p.running.Go(func() {
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.Chan():
					// A tick and a cancel can be ready together
					if ctx.Err() != nil {
						return
					}
					task.Run(ctx)
				}
			}
		})
	}
}

// Stop is idempotent
func (p *Poller) Stop() {
	p.mutex.Lock()
	running := p.running
	cancel := p.cancel
	p.running = nil
	p.cancel = nil
	p.mutex.Unlock()

	if running == nil {
		return
	}

	cancel()
	running.Wait()
}
