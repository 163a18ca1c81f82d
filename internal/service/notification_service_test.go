package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
)

func TestNotificationService_StubsFollowConfig(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{EmailFrom: "desk@example.com"})
	svc.RegisterHandlers()
	ctx := context.Background()

	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventIncidentCreated, IncidentID: "i1"})
	_ = dispatcher.Publish(ctx, events.Event{
		Type:       events.EventIncidentStateChanged,
		IncidentID: "i1",
		Payload:    events.IncidentStateChangedPayload{OldState: domain.IncidentStateInProgress, NewState: domain.IncidentStateResolved},
	})
	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventIncidentReassigned, IncidentID: "i1"})

	assert.Equal(t, 1, logs.FilterMessage("IncidentCreated").Len())
	assert.Equal(t, 1, logs.FilterMessage("IncidentStateChanged").Len())
	assert.Equal(t, 1, logs.FilterMessage("IncidentReassigned").Len())
	assert.Equal(t, 2, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Zero(t, logs.FilterMessage("sendWebhookNotificationStub").Len())
}

func TestNotificationService_NilDispatcher(t *testing.T) {
	svc := NewNotificationService(nil, nil, config.NotificationConfig{})
	assert.NotPanics(t, svc.RegisterHandlers)
}
