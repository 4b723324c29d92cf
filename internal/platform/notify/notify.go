// Package notify carries intake events between server instances over
// Postgres LISTEN/NOTIFY and fans them out to in-process subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/pkg/models"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Publisher sends intake events on a NOTIFY channel. Inside a transaction
// started by db.TxRunner the notification is delivered on commit.
type Publisher struct {
	conn    Execer
	channel string
}

func NewPublisher(conn Execer, channel string) *Publisher {
	return &Publisher{conn: conn, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, evt models.IntakeEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode intake event: %w", err)
	}
	var exec Execer = p.conn
	if tx := db.ConnFromContext(ctx); tx != nil {
		exec = tx
	}
	if _, err := exec.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", p.channel, err)
	}
	return nil
}

// Hub fans events out to subscribers. Slow subscribers drop events rather
// than block the broadcaster.
type Hub struct {
	mu   sync.Mutex
	subs map[chan models.IntakeEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan models.IntakeEvent]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it; it closes the channel.
func (h *Hub) Subscribe() (<-chan models.IntakeEvent, func()) {
	ch := make(chan models.IntakeEvent, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Broadcast(evt models.IntakeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Listen holds a dedicated LISTEN connection on channel and forwards every
// decoded notification to hub until ctx is cancelled.
func Listen(ctx context.Context, dsn, channel string, hub *Hub, logger zerolog.Logger) error {
	l := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn().Err(err).Int("event", int(ev)).Msg("notify listener connection event")
		}
	})
	defer l.Close()

	if err := l.Listen(channel); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	logger.Info().Str("channel", channel).Msg("listening for intake events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.Notify:
			// nil after a reconnect; notifications sent meanwhile are lost.
			if n == nil {
				continue
			}
			evt, err := Decode(n.Extra)
			if err != nil {
				logger.Warn().Err(err).Msg("drop malformed intake event")
				continue
			}
			hub.Broadcast(evt)
		case <-time.After(90 * time.Second):
			if err := l.Ping(); err != nil {
				logger.Warn().Err(err).Msg("notify listener ping failed")
			}
		}
	}
}

// Decode parses a NOTIFY payload.
func Decode(payload string) (models.IntakeEvent, error) {
	var evt models.IntakeEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return evt, fmt.Errorf("decode intake event: %w", err)
	}
	return evt, nil
}
