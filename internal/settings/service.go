package settings

import (
	"context"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

const DefaultSMSTemplate = "Thanks for your call. Summary: {{summary}}"

// SettingsService exposes typed, defaulted reads over the settings
// table so callers never touch raw JSON values.
type SettingsService struct {
	SettingsRepository *SettingsRepository
}

func NewService(dbConn *gorm.DB) *SettingsService {
	return &SettingsService{
		SettingsRepository: NewRepository(dbConn),
	}
}

func (settingsService *SettingsService) IsSMSEnabled(ctx context.Context) bool {
	return settingsService.boolSetting(ctx, KeySMSEnabled, false)
}

func (settingsService *SettingsService) SkipSilentSMS(ctx context.Context) bool {
	return settingsService.boolSetting(ctx, KeySMSSkipSilent, true)
}

func (settingsService *SettingsService) AutoCreateContacts(ctx context.Context) bool {
	return settingsService.boolSetting(ctx, KeyAutoCreateContacts, true)
}

func (settingsService *SettingsService) SaveMemories(ctx context.Context) bool {
	return settingsService.boolSetting(ctx, KeySaveMemories, true)
}

func (settingsService *SettingsService) SMSTemplate(ctx context.Context) string {
	return settingsService.stringSetting(ctx, KeySMSTemplate, DefaultSMSTemplate)
}

func (settingsService *SettingsService) boolSetting(ctx context.Context, key string, fallback bool) bool {
	setting, err := settingsService.SettingsRepository.Get(ctx, key)
	if err != nil || setting == nil {
		return fallback
	}

	var value bool

	err = json.Unmarshal(setting.Value, &value)
	if err != nil {
		return fallback
	}

	return value
}

func (settingsService *SettingsService) stringSetting(ctx context.Context, key string, fallback string) string {
	setting, err := settingsService.SettingsRepository.Get(ctx, key)
	if err != nil || setting == nil {
		return fallback
	}

	var value string

	err = json.Unmarshal(setting.Value, &value)
	if err != nil || value == "" {
		return fallback
	}

	return value
}
