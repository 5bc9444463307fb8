package db

import (
	"context"
	"testing"
	"time"

	"sms-gateway-dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceivedRepository_InsertExists(t *testing.T) {
	ctx := context.Background()
	repo := NewReceivedRepository(SetupTestDB(t))

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &models.ReceivedMessage{Body: "Hello", SenderNumber: "+15141234567", ReceivedAt: at}
	require.NoError(t, repo.Insert(ctx, m))
	assert.NotZero(t, m.ID)

	ok, err := repo.Exists(ctx, "+15141234567", "Hello")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "+15141234567", "hello")
	require.NoError(t, err)
	assert.False(t, ok, "body match is exact")

	ok, err = repo.Exists(ctx, "5141234567", "Hello")
	require.NoError(t, err)
	assert.False(t, ok, "sender match is on the raw value")

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.ParticipantID)
	assert.False(t, got.IsRead)
	assert.Nil(t, got.ReadAt)
	assert.True(t, at.Equal(got.ReceivedAt))

	assert.Error(t, repo.Insert(ctx, &models.ReceivedMessage{SenderNumber: "+1"}))
}

func TestReceivedRepository_InsertDefaultsTime(t *testing.T) {
	ctx := context.Background()
	repo := NewReceivedRepository(SetupTestDB(t))

	m := &models.ReceivedMessage{Body: "Hi", SenderNumber: "+1"}
	require.NoError(t, repo.Insert(ctx, m))
	assert.WithinDuration(t, time.Now(), m.ReceivedAt, 5*time.Second)
}

func TestReceivedRepository_MarkRead(t *testing.T) {
	ctx := context.Background()
	db := SetupTestDB(t)
	participants := NewParticipantRepository(db)
	repo := NewReceivedRepository(db)

	ana := createParticipant(t, participants, "Ana", "+15141234567")

	insert := func(pid *int64, sender, body string) *models.ReceivedMessage {
		m := &models.ReceivedMessage{ParticipantID: pid, Body: body, SenderNumber: sender}
		require.NoError(t, repo.Insert(ctx, m))
		return m
	}

	one := insert(&ana.ID, "+15141234567", "a")
	insert(&ana.ID, "+15141234567", "b")
	insert(nil, "(438) 555-0101", "c")
	insert(nil, "+14385550101", "d")
	insert(nil, "+19995550000", "e")

	n, err := repo.MarkRead(ctx, one.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, one.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.NotNil(t, got.ReadAt)

	n, err = repo.MarkReadByParticipant(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "already read rows are not counted")

	n, err = repo.MarkReadBySender(ctx, "+14385550101", "4385550101")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err := repo.ListUnread(ctx)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "e", unread[0].Body)
	assert.Equal(t, "+19995550000", unread[0].Phone, "unknown senders keep their raw number")
}

func TestReceivedRepository_ListUnreadJoinsParticipant(t *testing.T) {
	ctx := context.Background()
	db := SetupTestDB(t)
	participants := NewParticipantRepository(db)
	repo := NewReceivedRepository(db)

	ana := createParticipant(t, participants, "Ana", "+15141234567")
	older := &models.ReceivedMessage{ParticipantID: &ana.ID, Body: "old", SenderNumber: "5141234567", ReceivedAt: time.Now().Add(-time.Hour)}
	newer := &models.ReceivedMessage{ParticipantID: &ana.ID, Body: "new", SenderNumber: "5141234567", ReceivedAt: time.Now()}
	require.NoError(t, repo.Insert(ctx, older))
	require.NoError(t, repo.Insert(ctx, newer))

	unread, err := repo.ListUnread(ctx)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "new", unread[0].Body)
	assert.Equal(t, "Ana", unread[0].FirstName)
	assert.Equal(t, "+15141234567", unread[0].Phone)
}

func TestSentRepository(t *testing.T) {
	ctx := context.Background()
	db := SetupTestDB(t)
	participants := NewParticipantRepository(db)
	repo := NewSentRepository(db)

	ana := createParticipant(t, participants, "Ana", "+15141234567")

	ok := &models.SentMessage{ParticipantID: &ana.ID, Body: "hi", RecipientNumber: "+15141234567", Status: models.StatusSuccess, SentAt: time.Now().Add(-time.Minute)}
	failed := &models.SentMessage{ParticipantID: &ana.ID, Body: "again", RecipientNumber: "+15141234567", Status: models.StatusFailure}
	manual := &models.SentMessage{Body: "hey", RecipientNumber: "+14385550101", Status: models.StatusSuccess}
	require.NoError(t, repo.Insert(ctx, ok))
	require.NoError(t, repo.Insert(ctx, failed))
	require.NoError(t, repo.Insert(ctx, manual))

	assert.Error(t, repo.Insert(ctx, &models.SentMessage{Body: "x", Status: "queued"}))

	history, err := repo.ListByParticipant(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "again", history[0].Body)
	assert.Equal(t, models.StatusFailure, history[0].Status)

	entries, err := repo.ListEntries(ctx, EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = repo.ListEntries(ctx, EntryFilter{PhoneDigits: "4385550101"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hey", entries[0].Body)
	assert.Nil(t, entries[0].FirstName)
	assert.Equal(t, models.DirectionSent, entries[0].Type)

	entries, err = repo.ListEntries(ctx, EntryFilter{ParticipantID: &ana.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].FirstName)
	assert.Equal(t, "Ana", *entries[0].FirstName)
}

func TestReceivedRepository_ListEntries(t *testing.T) {
	ctx := context.Background()
	db := SetupTestDB(t)
	participants := NewParticipantRepository(db)
	repo := NewReceivedRepository(db)

	ana := createParticipant(t, participants, "Ana", "+15141234567")
	require.NoError(t, repo.Insert(ctx, &models.ReceivedMessage{ParticipantID: &ana.ID, Body: "known", SenderNumber: "+15141234567"}))
	require.NoError(t, repo.Insert(ctx, &models.ReceivedMessage{Body: "stranger", SenderNumber: "1-438-555-0101"}))

	entries, err := repo.ListEntries(ctx, EntryFilter{PhoneDigits: "4385550101"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stranger", entries[0].Body)
	assert.Equal(t, models.DirectionReceived, entries[0].Type)
	require.NotNil(t, entries[0].IsRead)
	assert.False(t, *entries[0].IsRead)

	entries, err = repo.ListEntries(ctx, EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
