package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
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

	require.NoError(t, db.AutoMigrate(&Setting{}))

	return db
}

func TestDefaultsWhenUnset(t *testing.T) {
	service := NewService(newTestDB(t))
	ctx := context.Background()

	require.False(t, service.IsSMSEnabled(ctx))
	require.True(t, service.SkipSilentSMS(ctx))
	require.True(t, service.AutoCreateContacts(ctx))
	require.True(t, service.SaveMemories(ctx))
	require.Equal(t, DefaultSMSTemplate, service.SMSTemplate(ctx))
}

func TestPutOverridesDefaults(t *testing.T) {
	service := NewService(newTestDB(t))
	ctx := context.Background()

	_, err := service.SettingsRepository.Put(ctx, KeySMSEnabled, []byte("true"))
	require.NoError(t, err)

	_, err = service.SettingsRepository.Put(ctx, KeySaveMemories, []byte("false"))
	require.NoError(t, err)

	_, err = service.SettingsRepository.Put(ctx, KeySMSTemplate, []byte(`"Thanks {{name}}!"`))
	require.NoError(t, err)

	require.True(t, service.IsSMSEnabled(ctx))
	require.False(t, service.SaveMemories(ctx))
	require.Equal(t, "Thanks {{name}}!", service.SMSTemplate(ctx))
}

func TestPutLastWriteWins(t *testing.T) {
	service := NewService(newTestDB(t))
	ctx := context.Background()

	first, err := service.SettingsRepository.Put(ctx, KeySMSEnabled, []byte("true"))
	require.NoError(t, err)

	second, err := service.SettingsRepository.Put(ctx, KeySMSEnabled, []byte("false"))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "rewrite updates the existing row")

	_, err = service.SettingsRepository.Put(ctx, KeySMSEnabled, []byte("true"))
	require.NoError(t, err)
	require.True(t, service.IsSMSEnabled(ctx))

	var count int64
	require.NoError(t, service.SettingsRepository.DBConn.Model(&Setting{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "one row per key")
}

func TestMalformedValueFallsBackToDefault(t *testing.T) {
	service := NewService(newTestDB(t))
	ctx := context.Background()

	_, err := service.SettingsRepository.Put(ctx, KeySMSEnabled, []byte(`"not a bool"`))
	require.NoError(t, err)

	require.False(t, service.IsSMSEnabled(ctx))
}

func TestGetReturnsNilWhenUnset(t *testing.T) {
	service := NewService(newTestDB(t))

	setting, err := service.SettingsRepository.Get(context.Background(), "sms_enabled")
	require.NoError(t, err)
	require.Nil(t, setting)
}
