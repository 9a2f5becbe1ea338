package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/internal/analytics/types"
	"github.com/streampass/streampass-backend/pkg/enums"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/outbox"
)

type stubHandler struct {
	called    bool
	envelopes []types.Envelope
	err       error
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope) error {
	s.called = true
	s.envelopes = append(s.envelopes, envelope)
	return s.err
}

type stubManager struct {
	checkResult bool
	checkErr    error
	checked     []uuid.UUID
	deleted     []uuid.UUID
}

func (s *stubManager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.checkResult, s.checkErr
}

func (s *stubManager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	return nil
}

func newTestServiceWithDeps(t *testing.T, handler Handler, manager idempotencyChecker) *Service {
	t.Helper()
	return &Service{
		handler: handler,
		manager: manager,
		logg:    logger.New(logger.Options{ServiceName: "analytics-worker-test", Output: io.Discard}),
	}
}

func buildMessage(t *testing.T, payload outbox.PayloadEnvelope, attributes map[string]string) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &gcppubsub.Message{
		ID:         "msg-1",
		Data:       data,
		Attributes: attributes,
	}
}

func buildPlaybackMessage(t *testing.T) *gcppubsub.Message {
	t.Helper()
	payload := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 3, 14, 21, 10, 0, 0, time.UTC),
		Data:       json.RawMessage(`{"session_id":"` + uuid.NewString() + `"}`),
	}
	return buildMessage(t, payload, map[string]string{
		"event_type":     "playback_ended",
		"aggregate_type": "playback_session",
		"aggregate_id":   uuid.NewString(),
	})
}

func TestBuildEnvelope(t *testing.T) {
	svc := newTestServiceWithDeps(t, &stubHandler{}, &stubManager{})
	occurred := time.Date(2026, 3, 14, 21, 10, 0, 0, time.UTC)
	eventID := uuid.NewString()
	sessionID := uuid.NewString()
	payload := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: occurred,
		Data:       json.RawMessage(`{"session_id":"` + sessionID + `"}`),
	}
	msg := buildMessage(t, payload, map[string]string{
		"event_type":     "playback_ended",
		"aggregate_type": "playback_session",
		"aggregate_id":   sessionID,
	})

	env, err := svc.buildEnvelope(msg)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventType != enums.EventPlaybackEnded {
		t.Fatalf("unexpected event type %v", env.EventType)
	}
	if env.AggregateType != enums.AggregatePlaybackSession {
		t.Fatalf("unexpected aggregate type %v", env.AggregateType)
	}
	if env.AggregateID != sessionID {
		t.Fatalf("unexpected aggregate id %s", env.AggregateID)
	}
	if env.EventID != eventID {
		t.Fatalf("unexpected event id %s", env.EventID)
	}
	if !env.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected occurred at %v", env.OccurredAt)
	}
}

func TestBuildEnvelopeRejectsUnknownEventType(t *testing.T) {
	svc := newTestServiceWithDeps(t, &stubHandler{}, &stubManager{})
	msg := buildMessage(t, outbox.PayloadEnvelope{EventID: uuid.NewString()}, map[string]string{
		"event_type":     "unrecognized",
		"aggregate_type": "playback_session",
		"aggregate_id":   uuid.NewString(),
	})
	if _, err := svc.buildEnvelope(msg); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestProcessAlreadyProcessed(t *testing.T) {
	manager := &stubManager{checkResult: true}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildPlaybackMessage(t))
	if res.nack {
		t.Fatalf("expected ack, got nack")
	}
	if handler.called {
		t.Fatal("handler should not be invoked when already processed")
	}
	if len(manager.checked) != 1 {
		t.Fatalf("expected check once, got %d", len(manager.checked))
	}
}

func TestProcessHandlerErrorNacksAndReleasesMark(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: errors.New("bigquery down")}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildPlaybackMessage(t))
	if !res.nack {
		t.Fatalf("expected nack on handler error")
	}
	if len(manager.deleted) != 1 {
		t.Fatalf("expected mark released once, got %d", len(manager.deleted))
	}
}

func TestProcessIdempotencyFailureNacks(t *testing.T) {
	manager := &stubManager{checkErr: errors.New("redis down")}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildPlaybackMessage(t))
	if !res.nack {
		t.Fatalf("expected nack when idempotency store is unavailable")
	}
	if handler.called {
		t.Fatal("handler must not run when the idempotency check fails")
	}
}

func TestProcessDropsMalformedEnvelope(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	msg := &gcppubsub.Message{ID: "msg-bad", Data: []byte(`{not json`)}
	res := svc.process(context.Background(), msg)
	if res.nack {
		t.Fatal("malformed envelopes should ack, redelivery cannot fix them")
	}
	if handler.called || len(manager.checked) != 0 {
		t.Fatal("nothing downstream should run for malformed envelopes")
	}
}
