package authcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nearbyhub/authcore/internal/metrics"
)

// outbox is the non-blocking mail queue. Account flows only enqueue;
// one worker goroutine delivers with bounded retries. A full queue drops
// the message and counts the drop — mail is always best-effort and must
// never fail or stall the primary operation.
type outbox struct {
	mailer     Mailer
	log        zerolog.Logger
	metrics    *metrics.Metrics
	retries    int
	retryDelay time.Duration

	ch        chan Mail
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newOutbox(mailer Mailer, cfg OutboxConfig, log zerolog.Logger, m *metrics.Metrics) *outbox {
	if mailer == nil {
		return nil
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}

	o := &outbox{
		mailer:     mailer,
		log:        log,
		metrics:    m,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		ch:         make(chan Mail, cfg.Buffer),
		done:       make(chan struct{}),
	}

	o.wg.Add(1)
	go o.run()

	return o
}

func (o *outbox) run() {
	defer o.wg.Done()

	for {
		select {
		case m := <-o.ch:
			o.deliver(m)
		case <-o.done:
			for {
				select {
				case m := <-o.ch:
					o.deliver(m)
				default:
					return
				}
			}
		}
	}
}

func (o *outbox) deliver(m Mail) {
	var err error
	for attempt := 1; attempt <= o.retries; attempt++ {
		err = o.mailer.Send(context.Background(), m)
		if err == nil {
			return
		}
		if attempt < o.retries && o.retryDelay > 0 {
			select {
			case <-time.After(o.retryDelay):
			case <-o.done:
			}
		}
	}
	o.log.Warn().
		Err(err).
		Str("template", m.Template).
		Msg("mail delivery failed after retries")
}

// enqueue never blocks. A nil outbox (no mailer configured) and a full
// buffer both silently drop.
func (o *outbox) enqueue(m Mail) {
	if o == nil || o.closed.Load() {
		return
	}

	select {
	case o.ch <- m:
		o.metrics.Inc(metrics.MetricMailEnqueued)
	case <-o.done:
	default:
		o.dropped.Add(1)
		o.metrics.Inc(metrics.MetricMailDropped)
		o.log.Warn().
			Str("template", m.Template).
			Msg("mail outbox full, message dropped")
	}
}

func (o *outbox) close() {
	if o == nil {
		return
	}
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		close(o.done)
		o.wg.Wait()
	})
}

func (o *outbox) droppedCount() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}
