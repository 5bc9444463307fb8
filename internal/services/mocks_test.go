package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/gateway"
	"sms-gateway-dashboard/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway is a mock implementation of Gateway for testing
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Fetch(ctx context.Context, path string) ([]extract.Record, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]extract.Record), args.Error(1)
}

func (m *MockGateway) Send(ctx context.Context, phoneNumbers []string, text string) (*gateway.SendResponse, error) {
	args := m.Called(ctx, phoneNumbers, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendResponse), args.Error(1)
}

func (m *MockGateway) Health(ctx context.Context) (map[string]any, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

type sentEvent struct {
	name string
	data interface{}
}

// recordingNotifier keeps every broadcast event in order
type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Broadcast(event string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{name: event, data: data})
}

func (n *recordingNotifier) named(event string) []interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []interface{}
	for _, e := range n.events {
		if e.name == event {
			out = append(out, e.data)
		}
	}
	return out
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.name)
	}
	return out
}

type testStore struct {
	db           *sql.DB
	participants db.ParticipantRepository
	received     db.ReceivedRepository
	sent         db.SentRepository
	resolver     *Resolver
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	database := db.SetupTestDB(t)
	participants := db.NewParticipantRepository(database)
	return &testStore{
		db:           database,
		participants: participants,
		received:     db.NewReceivedRepository(database),
		sent:         db.NewSentRepository(database),
		resolver:     NewResolver(participants),
	}
}

func (s *testStore) participant(t *testing.T, first, phone string) *models.Participant {
	t.Helper()
	p := &models.Participant{FirstName: first, Phone: phone}
	require.NoError(t, s.participants.Create(context.Background(), p))
	return p
}

func records(items ...map[string]any) []extract.Record {
	out := make([]extract.Record, 0, len(items))
	for _, item := range items {
		out = append(out, extract.Record(item))
	}
	return out
}
