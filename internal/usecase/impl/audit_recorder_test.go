package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"warden/internal/domain/entity"
	"warden/internal/domain/service"
	mockrepo "warden/internal/mocks/repository"
	mocksvc "warden/internal/mocks/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubParser struct{}

func (stubParser) Parse(userAgent string) entity.ClientInfo {
	if userAgent == "" {
		return entity.ClientInfo{Browser: "unknown", OS: "unknown", Device: "unknown"}
	}

	return entity.ClientInfo{Browser: "Firefox 128", OS: "Linux", Device: "desktop"}
}

type recorderFixture struct {
	recorder  *auditRecorder
	repo      *mockrepo.MockAuditRepository
	publisher *mocksvc.MockAuditEventPublisher

	mu     sync.Mutex
	events []*entity.AuditEvent
}

func newRecorderFixture(t *testing.T, queueSize int) *recorderFixture {
	t.Helper()

	f := &recorderFixture{
		repo:      mockrepo.NewMockAuditRepository(t),
		publisher: mocksvc.NewMockAuditEventPublisher(t),
	}
	dispatcher := newAuditDispatcher(f.repo, f.publisher, discardLogger(), 2, queueSize)
	f.recorder = newAuditRecorder(dispatcher, stubParser{}, mocksvc.NewFakeClock(testEpoch), discardLogger())

	return f
}

func (f *recorderFixture) expectPersist(err error) {
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.AuditEvent")).
		Run(func(args mock.Arguments) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, args.Get(1).(*entity.AuditEvent))
		}).
		Return(err)
}

func (f *recorderFixture) persisted() []*entity.AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*entity.AuditEvent(nil), f.events...)
}

func TestAuditRecorder_PersistsAndPublishes(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newRecorderFixture(t, 8)
	f.expectPersist(nil)
	f.publisher.On("PublishAuditEvent", mock.Anything, mock.MatchedBy(func(msg *service.AuditEventMessage) bool {
		return msg.Action == string(entity.ActionUserUpdate) && msg.Severity == string(entity.SeverityInfo)
	})).Return(nil).Once()

	f.recorder.dispatcher.start()

	actor := uuid.New()
	f.recorder.Record(context.Background(), entity.AuditEntry{
		ActorID:      &actor,
		Action:       entity.ActionUserUpdate,
		Status:       entity.StatusSuccess,
		ResourceType: "user",
		ResourceID:   actor.String(),
		Before:       map[string]any{"username": "old", "password": "x", "updatedAt": 1},
		After:        map[string]any{"username": "new", "password": "y", "updatedAt": 2},
		Details:      map[string]any{"source": "profile"},
		Meta: entity.RequestMeta{
			IPAddress: "192.0.2.1",
			UserAgent: "Mozilla/5.0",
			Endpoint:  "/users/me",
			Method:    "PATCH",
			RequestID: "req-9",
		},
	})

	require.NoError(t, f.recorder.Close(context.Background()))

	events := f.persisted()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, &actor, event.UserID)
	assert.Equal(t, entity.CategoryDataModification, event.Category)
	assert.Equal(t, entity.SeverityInfo, event.Severity)
	assert.Equal(t, []string{"username"}, event.ChangedFields)
	assert.NotContains(t, event.BeforeState, "password")
	assert.NotContains(t, event.AfterState, "password")
	assert.Equal(t, "Firefox 128", event.Client.Browser)
	assert.Equal(t, "PATCH", event.HTTPMethod)
	assert.Equal(t, testEpoch, event.CreatedAt)
	assert.NotEmpty(t, event.JourneyID)
}

func TestAuditRecorder_ActorRule(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newRecorderFixture(t, 8)
	f.expectPersist(nil)
	f.publisher.On("PublishAuditEvent", mock.Anything, mock.Anything).Return(nil)
	f.recorder.dispatcher.start()

	ctx := context.Background()
	// logout needs an actor and is dropped; a failed login never has one and is kept
	f.recorder.Record(ctx, entity.AuditEntry{Action: entity.ActionLogout, Status: entity.StatusSuccess})
	f.recorder.Record(ctx, entity.AuditEntry{Action: entity.ActionLogin, Status: entity.StatusFailed})

	require.NoError(t, f.recorder.Close(ctx))

	events := f.persisted()
	require.Len(t, events, 1)
	assert.Equal(t, entity.ActionLogin, events[0].Action)
	assert.Nil(t, events[0].UserID)
	assert.Equal(t, entity.SeverityCritical, events[0].Severity)
}

func TestAuditRecorder_UnregisteredActionAndStatusDefaults(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newRecorderFixture(t, 8)
	f.expectPersist(nil)
	f.publisher.On("PublishAuditEvent", mock.Anything, mock.Anything).Return(nil)
	f.recorder.dispatcher.start()

	actor := uuid.New()
	f.recorder.Record(context.Background(), entity.AuditEntry{ActorID: &actor, Action: "report-delete"})

	require.NoError(t, f.recorder.Close(context.Background()))

	events := f.persisted()
	require.Len(t, events, 1)
	assert.Equal(t, entity.StatusSuccess, events[0].Status)
	assert.Equal(t, entity.CategoryDataModification, events[0].Category)
	assert.Equal(t, entity.SeverityWarning, events[0].Severity)
}

func TestAuditRecorder_PersistFailureSkipsPublish(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newRecorderFixture(t, 8)
	f.expectPersist(errors.New("disk full"))
	f.recorder.dispatcher.start()

	actor := uuid.New()
	f.recorder.Record(context.Background(), entity.AuditEntry{ActorID: &actor, Action: entity.ActionLogout})

	require.NoError(t, f.recorder.Close(context.Background()))
	assert.Len(t, f.persisted(), 1)
	f.publisher.AssertNotCalled(t, "PublishAuditEvent", mock.Anything, mock.Anything)
}

func TestAuditDispatcher_DropsWhenQueueFull(t *testing.T) {
	f := newRecorderFixture(t, 1)
	d := f.recorder.dispatcher

	// workers are not started, so nothing drains the queue
	assert.True(t, d.enqueue(&entity.AuditEvent{ID: uuid.New(), Action: entity.ActionLogin}))
	assert.False(t, d.enqueue(&entity.AuditEvent{ID: uuid.New(), Action: entity.ActionLogin}))

	require.NoError(t, d.close(context.Background()))
}

func TestAuditRecorder_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newRecorderFixture(t, 4)
	f.recorder.dispatcher.start()

	require.NoError(t, f.recorder.Close(context.Background()))
	require.NoError(t, f.recorder.Close(context.Background()))

	actor := uuid.New()
	f.recorder.Record(context.Background(), entity.AuditEntry{ActorID: &actor, Action: entity.ActionLogout})
	assert.False(t, f.recorder.dispatcher.enqueue(&entity.AuditEvent{ID: uuid.New()}))
}

func TestAuditRecorder_CloseHonoursDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newRecorderFixture(t, 4)
	release := make(chan struct{})
	f.repo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			select {
			case <-release:
			case <-args.Get(0).(context.Context).Done():
			}
		}).
		Return(context.Canceled).
		Maybe()
	f.recorder.dispatcher.start()

	actor := uuid.New()
	f.recorder.Record(context.Background(), entity.AuditEntry{ActorID: &actor, Action: entity.ActionLogout})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := f.recorder.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	close(release)
}
