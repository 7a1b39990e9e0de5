package call

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/voqo-ai/voqo/internal/contact"
	"github.com/voqo-ai/voqo/internal/settings"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&Call{}, &contact.Contact{}, &contact.Memory{}, &settings.Setting{})
	require.NoError(t, err)

	return db
}

type fakeSummarizer struct {
	summary string
	calls   int
}

func (s *fakeSummarizer) Summarize(_ context.Context, _ []TranscriptItem) (string, error) {
	s.calls++
	return s.summary, nil
}

type fakeSMSSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSMSSender) Send(_ context.Context, toPhone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, toPhone+": "+message)
	return nil
}

type fakeArchiver struct {
	archived []string
}

func (a *fakeArchiver) Archive(_ context.Context, callID, _ string) (string, error) {
	a.archived = append(a.archived, callID)
	return "https://storage.example.com/recordings/" + callID + ".mp3", nil
}

type serviceFixture struct {
	db         *gorm.DB
	service    *CallService
	summarizer *fakeSummarizer
	sms        *fakeSMSSender
	archiver   *fakeArchiver
	settings   *settings.SettingsService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := newTestDB(t)

	summarizer := &fakeSummarizer{summary: "generated summary"}
	smsSender := &fakeSMSSender{}
	archiver := &fakeArchiver{}
	settingsService := settings.NewService(db)

	service := NewService(db, contact.NewService(db), settingsService, summarizer, smsSender, archiver)

	return &serviceFixture{
		db:         db,
		service:    service,
		summarizer: summarizer,
		sms:        smsSender,
		archiver:   archiver,
		settings:   settingsService,
	}
}

func (fx *serviceFixture) seedOutboundCall(t *testing.T, conversationID string) *Call {
	t.Helper()

	created, err := fx.service.CallRepository.CreateCall(context.Background(), &Call{
		AgentID:                  uuid.NewString(),
		ElevenLabsConversationID: conversationID,
		Direction:                DirectionOutbound,
		FromPhone:                "+15559990000",
		ToPhone:                  "+15550000001",
	})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, created.Status)

	return created
}

func TestProcessCompletionRejectsNonTerminalStatus(t *testing.T) {
	fx := newServiceFixture(t)

	err := fx.service.ProcessCompletionNotification(context.Background(), &CompletionNotification{
		ConversationID: "conv-1",
		Status:         StatusInProgress,
	})
	require.Error(t, err)
}

func TestProcessCompletionUnknownConversation(t *testing.T) {
	fx := newServiceFixture(t)

	err := fx.service.ProcessCompletionNotification(context.Background(), &CompletionNotification{
		ConversationID: "conv-ghost",
		Status:         StatusCompleted,
	})
	require.ErrorIs(t, err, ErrUnknownConversation)
}

func TestProcessCompletionIsIdempotent(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created := fx.seedOutboundCall(t, "conv-1")

	first := &CompletionNotification{
		ConversationID:  "conv-1",
		Status:          StatusCompleted,
		Summary:         "buyer wants a viewing",
		DurationSeconds: 95,
		Transcript: []TranscriptItem{
			{Role: "agent", Content: "Hello"},
			{Role: "user", Content: "Hi, I want a viewing"},
		},
	}

	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, first))

	// Redelivery with a contradictory status must not change anything.
	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID: "conv-1",
		Status:         StatusFailed,
	}))

	var final Call
	require.NoError(t, fx.db.First(&final, "id = ?", created.ID).Error)
	require.Equal(t, StatusCompleted, final.Status)
	require.Equal(t, "buyer wants a viewing", final.Summary)
	require.Equal(t, 95, final.DurationSeconds)

	var memories int64
	require.NoError(t, fx.db.Model(&contact.Memory{}).Count(&memories).Error)
	require.Equal(t, int64(1), memories, "post-call actions run once")
}

func TestCompletedCallCapturesMemoryForAutoCreatedContact(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created := fx.seedOutboundCall(t, "conv-1")

	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID: "conv-1",
		Status:         StatusCompleted,
		Summary:        "asked about 12 Oak St",
		Transcript:     []TranscriptItem{{Role: "user", Content: "tell me about 12 Oak St"}},
	}))

	found, err := fx.service.ContactService.LookupByPhone(ctx, "+15550000001")
	require.NoError(t, err)
	require.NotNil(t, found, "unknown callee is auto-created")

	memories, err := fx.service.ContactService.ContactRepository.ListMemories(ctx, found.ID)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	require.Equal(t, "asked about 12 Oak St", memories[0].Content)
	require.Equal(t, contact.MemorySourceAuto, memories[0].Source)
	require.NotNil(t, memories[0].CallID)
	require.Equal(t, created.ID, *memories[0].CallID)
}

func TestFailedCallSkipsPostCallActions(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	fx.seedOutboundCall(t, "conv-1")

	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID: "conv-1",
		Status:         StatusFailed,
	}))

	require.Zero(t, fx.summarizer.calls)
	require.Empty(t, fx.sms.sent)
	require.Empty(t, fx.archiver.archived)

	var memories int64
	require.NoError(t, fx.db.Model(&contact.Memory{}).Count(&memories).Error)
	require.Zero(t, memories)
}

func TestSummaryBackfillWhenWebhookOmitsIt(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created := fx.seedOutboundCall(t, "conv-1")

	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID: "conv-1",
		Status:         StatusCompleted,
		Transcript:     []TranscriptItem{{Role: "user", Content: "hello"}},
	}))

	require.Equal(t, 1, fx.summarizer.calls)

	var final Call
	require.NoError(t, fx.db.First(&final, "id = ?", created.ID).Error)
	require.Equal(t, "generated summary", final.Summary)
}

func TestFollowUpSMSHonorsSettings(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	fx.seedOutboundCall(t, "conv-1")

	// Disabled by default.
	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID: "conv-1",
		Status:         StatusCompleted,
		Summary:        "s",
		Transcript:     []TranscriptItem{{Role: "user", Content: "hi"}},
	}))
	require.Empty(t, fx.sms.sent)

	_, err := fx.settings.SettingsRepository.Put(ctx, settings.KeySMSEnabled, []byte("true"))
	require.NoError(t, err)

	second := fx.seedOutboundCall(t, "conv-2")

	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID:  "conv-2",
		Status:          StatusCompleted,
		Summary:         "viewing booked",
		DurationSeconds: 60,
		Transcript:      []TranscriptItem{{Role: "user", Content: "book it"}},
	}))

	require.Len(t, fx.sms.sent, 1)
	require.Contains(t, fx.sms.sent[0], "+15550000001")
	require.Contains(t, fx.sms.sent[0], "viewing booked")

	var final Call
	require.NoError(t, fx.db.First(&final, "id = ?", second.ID).Error)
	require.True(t, final.SMSSent)
	require.NotNil(t, final.SMSSentAt)
}

func TestSilentCallSkipsSMS(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	_, err := fx.settings.SettingsRepository.Put(ctx, settings.KeySMSEnabled, []byte("true"))
	require.NoError(t, err)

	fx.seedOutboundCall(t, "conv-1")

	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID: "conv-1",
		Status:         StatusCompleted,
		Summary:        "no one spoke",
	}))

	require.Empty(t, fx.sms.sent, "silent calls skip SMS by default")
}

func TestRecordingArchivedToDurableURL(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created := fx.seedOutboundCall(t, "conv-1")

	expires := time.Now().Add(24 * time.Hour).UTC()

	require.NoError(t, fx.service.ProcessCompletionNotification(ctx, &CompletionNotification{
		ConversationID:     "conv-1",
		Status:             StatusCompleted,
		Summary:            "s",
		Transcript:         []TranscriptItem{{Role: "user", Content: "hi"}},
		RecordingURL:       "https://provider.example.com/tmp/abc",
		RecordingExpiresAt: &expires,
	}))

	require.Equal(t, []string{created.ID}, fx.archiver.archived)

	var final Call
	require.NoError(t, fx.db.First(&final, "id = ?", created.ID).Error)
	require.Equal(t, "https://storage.example.com/recordings/"+created.ID+".mp3", final.RecordingURL)
	require.Nil(t, final.RecordingExpiresAt, "durable copy does not expire")
}
