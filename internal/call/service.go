package call

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/voqo-ai/voqo/internal/contact"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/settings"
	"github.com/voqo-ai/voqo/internal/template"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUnknownConversation = errors.New("completion notification references an unknown conversation")

// Summarizer produces a call summary from a transcript when the
// provider webhook omitted one.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []TranscriptItem) (string, error)
}

// SMSSender delivers the post-call follow-up text. Failures never
// affect call or job state.
type SMSSender interface {
	Send(ctx context.Context, toPhone, message string) error
}

// RecordingArchiver copies the provider's expiring recording to durable
// storage and returns the replacement URL.
type RecordingArchiver interface {
	Archive(ctx context.Context, callID, recordingURL string) (string, error)
}

type CallService struct {
	CallRepository    *CallRepository
	ContactService    *contact.ContactService
	SettingsService   *settings.SettingsService
	Summarizer        Summarizer
	SMSSender         SMSSender
	RecordingArchiver RecordingArchiver
}

func NewService(
	dbConn *gorm.DB,
	contactService *contact.ContactService,
	settingsService *settings.SettingsService,
	summarizer Summarizer,
	smsSender SMSSender,
	recordingArchiver RecordingArchiver,
) *CallService {
	return &CallService{
		CallRepository:    NewRepository(dbConn),
		ContactService:    contactService,
		SettingsService:   settingsService,
		Summarizer:        summarizer,
		SMSSender:         smsSender,
		RecordingArchiver: recordingArchiver,
	}
}

// ProcessCompletionNotification applies a provider completion
// notification to the call ledger. It is idempotent under
// at-least-once delivery: an unknown conversation identifier is
// reported as ErrUnknownConversation (the caller logs and drops it),
// and a repeated notification for an already-terminal call is a no-op.
func (callService *CallService) ProcessCompletionNotification(
	ctx context.Context,
	notification *CompletionNotification,
) error {
	if !IsTerminalStatus(notification.Status) {
		return fmt.Errorf("notification status %q is not terminal", notification.Status)
	}

	existing, err := callService.CallRepository.GetCallByConversationID(ctx, notification.ConversationID)
	if err != nil {
		return err
	}

	if existing == nil {
		return fmt.Errorf("%w: %s", ErrUnknownConversation, notification.ConversationID)
	}

	updates, err := buildFinalizeUpdates(notification)
	if err != nil {
		return err
	}

	first, err := callService.CallRepository.FinalizeCall(ctx, existing.ID, updates)
	if err != nil {
		return err
	}

	if !first {
		logging.Logger.Info("duplicate completion notification ignored",
			zap.String("call_id", existing.ID),
			zap.String("conversation_id", notification.ConversationID),
		)

		return nil
	}

	logging.Logger.Info("call finalized",
		zap.String("call_id", existing.ID),
		zap.String("conversation_id", notification.ConversationID),
		zap.String("status", notification.Status),
	)

	callService.runPostCallActions(ctx, existing, notification)

	return nil
}

func buildFinalizeUpdates(notification *CompletionNotification) (map[string]any, error) {
	updates := map[string]any{
		"status": notification.Status,
	}

	if len(notification.Transcript) > 0 {
		transcript, err := json.Marshal(notification.Transcript)
		if err != nil {
			return nil, err
		}

		updates["transcript"] = transcript
	}

	if notification.Summary != "" {
		updates["summary"] = notification.Summary
	}

	if notification.RecordingURL != "" {
		updates["recording_url"] = notification.RecordingURL
		updates["recording_expires_at"] = notification.RecordingExpiresAt
	}

	if notification.DurationSeconds > 0 {
		updates["duration_seconds"] = notification.DurationSeconds
	}

	if notification.StartedAt != nil {
		updates["started_at"] = notification.StartedAt
	}

	if notification.EndedAt != nil {
		updates["ended_at"] = notification.EndedAt
	}

	return updates, nil
}

// runPostCallActions performs the fire-and-forget follow-ups on the
// first delivery: summary backfill, memory capture, SMS, recording
// archive. Any failure here is logged and swallowed; the ledger status
// is already settled.
func (callService *CallService) runPostCallActions(
	ctx context.Context,
	existing *Call,
	notification *CompletionNotification,
) {
	if notification.Status != StatusCompleted {
		return
	}

	summary := notification.Summary
	if summary == "" && callService.Summarizer != nil && len(notification.Transcript) > 0 {
		generated, err := callService.Summarizer.Summarize(ctx, notification.Transcript)
		if err != nil {
			logging.Logger.Warn("failed to generate call summary",
				zap.String("call_id", existing.ID),
				zap.String("error", err.Error()),
			)
		} else if generated != "" {
			summary = generated
			_ = callService.CallRepository.SetSummary(ctx, existing.ID, generated)
		}
	}

	callService.captureMemory(ctx, existing, summary)
	callService.sendFollowUpSMS(ctx, existing, notification, summary)
	callService.archiveRecording(ctx, existing, notification)
}

func (callService *CallService) captureMemory(ctx context.Context, existing *Call, summary string) {
	if summary == "" || !callService.SettingsService.SaveMemories(ctx) {
		return
	}

	contactID := existing.ContactID

	if contactID == nil && callService.SettingsService.AutoCreateContacts(ctx) {
		counterparty := existing.ToPhone
		if existing.Direction == DirectionInbound {
			counterparty = existing.FromPhone
		}

		created, err := callService.ContactService.EnsureContactForPhone(ctx, counterparty)
		if err != nil {
			logging.Logger.Warn("failed to auto-create contact",
				zap.String("call_id", existing.ID),
				zap.String("error", err.Error()),
			)

			return
		}

		contactID = &created.ID
	}

	if contactID == nil {
		return
	}

	_, err := callService.ContactService.AddMemory(ctx, *contactID, summary, contact.MemorySourceAuto, &existing.ID)
	if err != nil {
		logging.Logger.Warn("failed to save call memory",
			zap.String("call_id", existing.ID),
			zap.String("contact_id", *contactID),
			zap.String("error", err.Error()),
		)
	}
}

func (callService *CallService) sendFollowUpSMS(
	ctx context.Context,
	existing *Call,
	notification *CompletionNotification,
	summary string,
) {
	if callService.SMSSender == nil || !callService.SettingsService.IsSMSEnabled(ctx) {
		return
	}

	if len(notification.Transcript) == 0 && callService.SettingsService.SkipSilentSMS(ctx) {
		return
	}

	message := template.Render(callService.SettingsService.SMSTemplate(ctx), map[string]string{
		"summary":  summary,
		"duration": strconv.Itoa(notification.DurationSeconds),
	})

	toPhone := existing.ToPhone
	if existing.Direction == DirectionInbound {
		toPhone = existing.FromPhone
	}

	err := callService.SMSSender.Send(ctx, toPhone, message)
	if err != nil {
		logging.Logger.Warn("post-call sms failed",
			zap.String("call_id", existing.ID),
			zap.String("to_phone", toPhone),
			zap.String("error", err.Error()),
		)

		return
	}

	_ = callService.CallRepository.MarkSMSSent(ctx, existing.ID)
}

func (callService *CallService) archiveRecording(
	ctx context.Context,
	existing *Call,
	notification *CompletionNotification,
) {
	if callService.RecordingArchiver == nil || notification.RecordingURL == "" {
		return
	}

	durableURL, err := callService.RecordingArchiver.Archive(ctx, existing.ID, notification.RecordingURL)
	if err != nil {
		logging.Logger.Warn("failed to archive call recording",
			zap.String("call_id", existing.ID),
			zap.String("error", err.Error()),
		)

		return
	}

	_ = callService.CallRepository.SetRecordingURL(ctx, existing.ID, durableURL)
}
