package telegram

import (
	"context"
	"log/slog"
	"time"
)

// Poller drives the getUpdates long-poll loop and hands every update to a
// sink. It is a producer only; all handling happens on the processor worker.
type Poller struct {
	log      *slog.Logger
	client   *Client
	sink     func(Update)
	stopChan chan bool

	offset int64
}

func NewPoller(log *slog.Logger, client *Client, sink func(Update)) *Poller {
	return &Poller{
		log:      log,
		client:   client,
		sink:     sink,
		stopChan: make(chan bool, 1),
	}
}

// Run blocks until Stop is called. Poll errors are logged and retried with a
// short pause; the loop never exits on its own.
func (p *Poller) Run() {
	p.log.Info("poller_started")

	errPause := 2 * time.Second

	for {
		select {
		case <-p.stopChan:
			p.log.Info("poller_stopped")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.client.pollTimeout+20*time.Second)
		updates, err := p.client.GetUpdates(ctx, p.offset)
		cancel()

		if err != nil {
			p.log.Warn("get_updates_failed", "error", err)
			select {
			case <-p.stopChan:
				p.log.Info("poller_stopped")
				return
			case <-time.After(errPause):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			p.sink(u)
		}
	}
}

func (p *Poller) Stop() {
	select {
	case p.stopChan <- true:
	default:
	}
}
