package contact

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

var (
	ErrInvalidContactResult = errors.New("invalid result type, it should be pointer to Contact struct")
	ErrInvalidMemoryResult  = errors.New("invalid result type, it should be pointer to Memory struct")
	ErrContactNotFound      = errors.New("contact does not exist")
)

type ContactRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *ContactRepository {
	cbSettings := database.GetCircuitBreakerSettings()

	return &ContactRepository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[any](cbSettings),
	}
}

func (contactRepository *ContactRepository) CreateContact(ctx context.Context, contact *Contact) (*Contact, error) {
	result, err := contactRepository.CircuitBreaker.Execute(func() (any, error) {
		if contact.ID == "" {
			contact.ID = uuid.NewString()
		}

		err := contactRepository.DBConn.WithContext(ctx).Create(contact).Error
		if err != nil {
			logging.Logger.Error("[CreateContact] Failed to create contact",
				zap.String("phone", contact.Phone),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return contact, nil
	})
	if err != nil {
		return nil, err
	}

	created, ok := result.(*Contact)
	if !ok {
		return nil, ErrInvalidContactResult
	}

	return created, nil
}

// GetContactByID returns the contact, or nil when no such contact exists.
func (contactRepository *ContactRepository) GetContactByID(ctx context.Context, contactID string) (*Contact, error) {
	return contactRepository.getContact(ctx, "id = ?", contactID)
}

// GetContactByPhone returns the contact with the given E.164 phone, or
// nil when the caller is unknown.
func (contactRepository *ContactRepository) GetContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	return contactRepository.getContact(ctx, "phone = ?", phone)
}

func (contactRepository *ContactRepository) getContact(
	ctx context.Context,
	query string,
	arg string,
) (*Contact, error) {
	result, err := contactRepository.CircuitBreaker.Execute(func() (any, error) {
		var contact Contact

		err := contactRepository.DBConn.WithContext(ctx).
			Where(query, arg).
			First(&contact).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*Contact)(nil), nil
		}

		if err != nil {
			logging.Logger.Error("[getContact] Failed to fetch contact",
				zap.String("query", query),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return &contact, nil
	})
	if err != nil {
		return nil, err
	}

	contact, ok := result.(*Contact)
	if !ok {
		return nil, ErrInvalidContactResult
	}

	return contact, nil
}

// CreateMemory records a fact about an existing contact.
func (contactRepository *ContactRepository) CreateMemory(ctx context.Context, memory *Memory) (*Memory, error) {
	result, err := contactRepository.CircuitBreaker.Execute(func() (any, error) {
		if memory.ID == "" {
			memory.ID = uuid.NewString()
		}

		err := contactRepository.DBConn.WithContext(ctx).Create(memory).Error
		if err != nil {
			logging.Logger.Error("[CreateMemory] Failed to create memory",
				zap.String("contact_id", memory.ContactID),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return memory, nil
	})
	if err != nil {
		return nil, err
	}

	created, ok := result.(*Memory)
	if !ok {
		return nil, ErrInvalidMemoryResult
	}

	return created, nil
}

func (contactRepository *ContactRepository) ListMemories(ctx context.Context, contactID string) ([]Memory, error) {
	var memories []Memory

	_, err := contactRepository.CircuitBreaker.Execute(func() (any, error) {
		err := contactRepository.DBConn.WithContext(ctx).
			Where("contact_id = ?", contactID).
			Order("created_at ASC").
			Find(&memories).Error

		return nil, err
	})
	if err != nil {
		return nil, err
	}

	return memories, nil
}
