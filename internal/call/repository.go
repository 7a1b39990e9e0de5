package call

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/voqo-ai/voqo/internal/database"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidCallResult = errors.New("invalid result type, it should be pointer to Call struct")

type CallRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *CallRepository {
	cbSettings := database.GetCircuitBreakerSettings()

	return &CallRepository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[any](cbSettings),
	}
}

func (callRepository *CallRepository) CreateCall(ctx context.Context, call *Call) (*Call, error) {
	result, err := callRepository.CircuitBreaker.Execute(func() (any, error) {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		if call.Status == "" {
			call.Status = StatusInProgress
		}

		err := callRepository.DBConn.WithContext(ctx).Create(call).Error
		if err != nil {
			logging.Logger.Error("[CreateCall] Failed to create call",
				zap.String("conversation_id", call.ElevenLabsConversationID),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return call, nil
	})
	if err != nil {
		return nil, err
	}

	created, ok := result.(*Call)
	if !ok {
		return nil, ErrInvalidCallResult
	}

	return created, nil
}

// GetCallByID returns the call, or nil when no such call exists.
func (callRepository *CallRepository) GetCallByID(ctx context.Context, callID string) (*Call, error) {
	return callRepository.getCall(ctx, "id = ?", callID)
}

// GetCallByConversationID locates the call for a provider conversation
// identifier, or nil when the identifier is unknown.
func (callRepository *CallRepository) GetCallByConversationID(
	ctx context.Context,
	conversationID string,
) (*Call, error) {
	return callRepository.getCall(ctx, "elevenlabs_conversation_id = ?", conversationID)
}

func (callRepository *CallRepository) getCall(ctx context.Context, query, arg string) (*Call, error) {
	result, err := callRepository.CircuitBreaker.Execute(func() (any, error) {
		var call Call

		err := callRepository.DBConn.WithContext(ctx).
			Where(query, arg).
			First(&call).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*Call)(nil), nil
		}

		if err != nil {
			logging.Logger.Error("[getCall] Failed to fetch call",
				zap.String("query", query),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return &call, nil
	})
	if err != nil {
		return nil, err
	}

	call, ok := result.(*Call)
	if !ok {
		return nil, ErrInvalidCallResult
	}

	return call, nil
}

// FinalizeCall applies a terminal outcome to an in-progress call. The
// update is guarded on the current status so a repeated notification
// for an already-terminal call changes nothing; it reports whether this
// delivery was the first one.
func (callRepository *CallRepository) FinalizeCall(
	ctx context.Context,
	callID string,
	updates map[string]any,
) (bool, error) {
	applied, err := callRepository.CircuitBreaker.Execute(func() (any, error) {
		tx := callRepository.DBConn.WithContext(ctx).
			Model(&Call{}).
			Where("id = ? AND status = ?", callID, StatusInProgress).
			Updates(updates)
		if tx.Error != nil {
			logging.Logger.Error("[FinalizeCall] Failed to finalize call",
				zap.String("call_id", callID),
				zap.String("error", tx.Error.Error()),
			)

			return false, tx.Error
		}

		return tx.RowsAffected > 0, nil
	})
	if err != nil {
		return false, err
	}

	first, ok := applied.(bool)
	if !ok {
		return false, ErrInvalidCallResult
	}

	return first, nil
}

// MarkSMSSent flags the post-call SMS as delivered exactly once.
func (callRepository *CallRepository) MarkSMSSent(ctx context.Context, callID string) error {
	_, err := callRepository.CircuitBreaker.Execute(func() (any, error) {
		now := time.Now()

		err := callRepository.DBConn.WithContext(ctx).
			Model(&Call{}).
			Where("id = ? AND sms_sent = ?", callID, false).
			Updates(map[string]any{
				"sms_sent":    true,
				"sms_sent_at": &now,
			}).Error

		return nil, err
	})

	return err
}

// SetRecordingURL replaces the provider's expiring recording reference
// with a durable one.
func (callRepository *CallRepository) SetRecordingURL(ctx context.Context, callID, url string) error {
	_, err := callRepository.CircuitBreaker.Execute(func() (any, error) {
		err := callRepository.DBConn.WithContext(ctx).
			Model(&Call{}).
			Where("id = ?", callID).
			Updates(map[string]any{
				"recording_url":        url,
				"recording_expires_at": nil,
			}).Error

		return nil, err
	})

	return err
}

// SetSummary fills the call summary when the provider omitted one.
func (callRepository *CallRepository) SetSummary(ctx context.Context, callID, summary string) error {
	_, err := callRepository.CircuitBreaker.Execute(func() (any, error) {
		err := callRepository.DBConn.WithContext(ctx).
			Model(&Call{}).
			Where("id = ? AND (summary IS NULL OR summary = '')", callID).
			Update("summary", summary).Error

		return nil, err
	})

	return err
}
