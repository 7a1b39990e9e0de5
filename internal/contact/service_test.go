package contact

import (
	"context"
	"testing"

	"github.com/google/uuid"
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

	require.NoError(t, db.AutoMigrate(&Contact{}, &Memory{}))

	return db
}

func TestCreateContactValidatesPhone(t *testing.T) {
	service := NewService(newTestDB(t))
	ctx := context.Background()

	_, err := service.CreateContact(ctx, &Contact{Name: "Avery", Phone: "0412345678"})
	require.ErrorIs(t, err, ErrInvalidPhone)

	created, err := service.CreateContact(ctx, &Contact{Name: "Avery", Phone: "+61412345678"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
}

func TestEnsureContactForPhoneIsIdempotent(t *testing.T) {
	service := NewService(newTestDB(t))
	ctx := context.Background()

	first, err := service.EnsureContactForPhone(ctx, "+15550000001")
	require.NoError(t, err)
	require.Equal(t, "+15550000001", first.Name, "auto-created contact is named after its phone")

	second, err := service.EnsureContactForPhone(ctx, "+15550000001")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, service.ContactRepository.DBConn.Model(&Contact{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAddMemoryRequiresContact(t *testing.T) {
	service := NewService(newTestDB(t))
	ctx := context.Background()

	_, err := service.AddMemory(ctx, uuid.NewString(), "likes terraces", MemorySourceManual, nil)
	require.ErrorIs(t, err, ErrContactNotFound)

	created, err := service.CreateContact(ctx, &Contact{Name: "Avery", Phone: "+15550000001"})
	require.NoError(t, err)

	memory, err := service.AddMemory(ctx, created.ID, "likes terraces", MemorySourceManual, nil)
	require.NoError(t, err)
	require.Equal(t, MemorySourceManual, memory.Source)
	require.Nil(t, memory.CallID)

	memories, err := service.ContactRepository.ListMemories(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, memories, 1)
}
