// Package processor owns all business handling: chat commands, button
// presses, free-text relay, and the inactivity sweeps. Everything funnels
// through one buffered queue consumed by a single worker goroutine, so a
// check-balance-then-debit sequence can never interleave with another
// mutation and the two sweeps can never overlap each other or a handler.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkdrop/internal/ledger"
	"linkdrop/internal/redis"
	"linkdrop/internal/telegram"
)

type EventType string

const (
	EventMessage      EventType = "MESSAGE"
	EventCallback     EventType = "CALLBACK"
	EventWarnSweep    EventType = "WARN_SWEEP"
	EventPenaltySweep EventType = "PENALTY_SWEEP"
)

type Event struct {
	ID        string
	Type      EventType
	Update    *telegram.Update
	Timestamp time.Time
}

// Sender is the outbound capability the processor needs from the transport.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Assistant relays free text to the external model.
type Assistant interface {
	Reply(ctx context.Context, text string, balance int64) (string, error)
}

type Processor struct {
	log       *slog.Logger
	store     ledger.Store
	redis     *redis.Client // optional; dedup/cache/DLQ are skipped when nil
	sender    Sender
	assistant Assistant

	adminUserID int64

	eventQueue chan Event
	stopChan   chan bool
	wg         sync.WaitGroup
}

func New(log *slog.Logger, store ledger.Store, redisClient *redis.Client, sender Sender, assistant Assistant, adminUserID int64) *Processor {
	return &Processor{
		log:         log,
		store:       store,
		redis:       redisClient,
		sender:      sender,
		assistant:   assistant,
		adminUserID: adminUserID,
		eventQueue:  make(chan Event, 4096),
		stopChan:    make(chan bool, 1),
	}
}

// EnqueueUpdate converts a transport update into an event and queues it.
// A full queue drops the update rather than blocking the poller.
func (p *Processor) EnqueueUpdate(u telegram.Update) {
	var typ EventType
	switch {
	case u.CallbackQuery != nil:
		typ = EventCallback
	case u.Message != nil:
		typ = EventMessage
	default:
		return
	}

	upd := u
	ev := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Update:    &upd,
		Timestamp: time.Now(),
	}

	select {
	case p.eventQueue <- ev:
	default:
		p.log.Warn("event_queue_full", "event_id", ev.ID, "event_type", ev.Type)
	}
}

func (p *Processor) enqueueSweep(typ EventType) {
	ev := Event{ID: uuid.NewString(), Type: typ, Timestamp: time.Now()}
	select {
	case p.eventQueue <- ev:
	default:
		p.log.Warn("event_queue_full", "event_id", ev.ID, "event_type", ev.Type)
	}
}

// Start launches the worker. Exactly one worker consumes the queue: handler
// atomicity and sweep serialization both depend on it.
func (p *Processor) Start() {
	p.wg.Add(1)
	go p.run()
	p.log.Info("event_worker_started")
}

func (p *Processor) run() {
	defer p.wg.Done()

	for {
		select {
		case event := <-p.eventQueue:
			ctx, cancel := context.WithTimeout(context.Background(), p.eventTimeout(event.Type))
			if err := p.ProcessEvent(ctx, event); err != nil {
				p.log.Warn("event_processing_failed",
					"event_id", event.ID,
					"event_type", event.Type,
					"error", err,
				)
				p.sendToDLQ(ctx, event, err.Error())
			}
			cancel()
		case <-p.stopChan:
			p.log.Info("event_worker_stopped")
			return
		}
	}
}

func (p *Processor) eventTimeout(typ EventType) time.Duration {
	// sweeps walk the whole user table; give them room
	if typ == EventWarnSweep || typ == EventPenaltySweep {
		return 5 * time.Minute
	}
	return 30 * time.Second
}

func (p *Processor) Stop() {
	select {
	case p.stopChan <- true:
	default:
	}
	p.wg.Wait()
}

func (p *Processor) ProcessEvent(ctx context.Context, event Event) error {
	if p.isDuplicate(ctx, event) {
		return nil
	}

	switch event.Type {
	case EventMessage:
		return p.handleMessage(ctx, event.Update.Message)
	case EventCallback:
		return p.handleCallback(ctx, event.Update.CallbackQuery)
	case EventWarnSweep:
		return p.runWarnSweep(ctx)
	case EventPenaltySweep:
		return p.runPenaltySweep(ctx)
	default:
		p.log.Debug("unknown_event_type", "type", event.Type)
		return nil
	}
}

// isDuplicate drops callback events already seen recently. Telegram redelivers
// callback queries when the acknowledgement is slow, and a redelivered press
// must not pay the reward twice.
func (p *Processor) isDuplicate(ctx context.Context, event Event) bool {
	if p.redis == nil || event.Type != EventCallback {
		return false
	}
	cb := event.Update.CallbackQuery
	if cb == nil || cb.ID == "" {
		return false
	}

	key := fmt.Sprintf("event:dedup:callback:%s", cb.ID)
	set, err := p.redis.RDB().SetNX(ctx, key, "1", 10*time.Minute).Result()
	if err != nil {
		return false // redis trouble must not stall handling
	}
	return !set
}

func (p *Processor) sendToDLQ(ctx context.Context, event Event, errorMsg string) {
	if p.redis == nil {
		return
	}
	data, _ := json.Marshal(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"update":     event.Update,
		"error":      errorMsg,
		"timestamp":  time.Now(),
	})
	p.redis.RDB().LPush(ctx, "dlq:events", data)
	p.redis.RDB().Expire(ctx, "dlq:events", 24*time.Hour)
}
