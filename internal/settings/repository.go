package settings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/voqo-ai/voqo/internal/database"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidSettingResult = errors.New("invalid result type, it should be pointer to Setting struct")

type SettingsRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *SettingsRepository {
	cbSettings := database.GetCircuitBreakerSettings()

	return &SettingsRepository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[any](cbSettings),
	}
}

// Get returns the setting for key, or nil when the key has never been written.
func (settingsRepository *SettingsRepository) Get(ctx context.Context, key string) (*Setting, error) {
	result, err := settingsRepository.CircuitBreaker.Execute(func() (any, error) {
		var setting Setting

		err := settingsRepository.DBConn.WithContext(ctx).
			Where("key = ?", key).
			First(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*Setting)(nil), nil
		}

		if err != nil {
			logging.Logger.Error("[Get] Failed to fetch setting",
				zap.String("key", key),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return &setting, nil
	})
	if err != nil {
		return nil, err
	}

	setting, ok := result.(*Setting)
	if !ok {
		return nil, ErrInvalidSettingResult
	}

	return setting, nil
}

// Put upserts the value for key. Last write wins. The generated ID goes
// through Attrs so the lookup matches on key alone; a pre-set primary
// key would leak into the query conditions and miss the existing row.
func (settingsRepository *SettingsRepository) Put(ctx context.Context, key string, value []byte) (*Setting, error) {
	result, err := settingsRepository.CircuitBreaker.Execute(func() (any, error) {
		setting := Setting{
			Key: key,
		}

		err := settingsRepository.DBConn.WithContext(ctx).
			Where("key = ?", key).
			Attrs(map[string]any{"id": uuid.NewString()}).
			Assign(map[string]any{"value": value}).
			FirstOrCreate(&setting).Error
		if err != nil {
			logging.Logger.Error("[Put] Failed to upsert setting",
				zap.String("key", key),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return &setting, nil
	})
	if err != nil {
		return nil, err
	}

	setting, ok := result.(*Setting)
	if !ok {
		return nil, ErrInvalidSettingResult
	}

	return setting, nil
}
