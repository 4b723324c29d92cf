package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medq/medq/pkg/models"
)

type recordingExec struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.CommandTag{}, r.err
}

func TestPublisher_Publish(t *testing.T) {
	db := &recordingExec{}
	p := NewPublisher(db, "medq_intake")
	id := uuid.New()

	err := p.Publish(context.Background(), models.IntakeEvent{Type: "patient.created", PatientID: id, Name: "John"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.sql, "pg_notify") {
		t.Errorf("expected pg_notify call, got %q", db.sql)
	}
	if db.args[0] != "medq_intake" {
		t.Errorf("expected channel arg, got %v", db.args[0])
	}
	evt, err := Decode(db.args[1].(string))
	if err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if evt.PatientID != id || evt.Name != "John" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestPublisher_PropagatesError(t *testing.T) {
	p := NewPublisher(&recordingExec{err: errors.New("down")}, "c")
	if err := p.Publish(context.Background(), models.IntakeEvent{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestHub_BroadcastAndCancel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}

	hub.Broadcast(models.IntakeEvent{Type: "patient.created", Name: "Ann"})
	select {
	case evt := <-ch:
		if evt.Name != "Ann" {
			t.Errorf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	cancel()
	if hub.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers after cancel, got %d", hub.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after cancel")
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Broadcast(models.IntakeEvent{Type: "patient.created"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode("{not json"); err == nil {
		t.Fatal("expected decode error")
	}
}
