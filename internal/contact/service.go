package contact

import (
	"context"
	"errors"

	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/phone"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidPhone = errors.New("phone number is not valid E.164")

type ContactService struct {
	ContactRepository *ContactRepository
}

func NewService(dbConn *gorm.DB) *ContactService {
	return &ContactService{
		ContactRepository: NewRepository(dbConn),
	}
}

func (contactService *ContactService) CreateContact(ctx context.Context, contact *Contact) (*Contact, error) {
	if !phone.IsValidE164(contact.Phone) {
		return nil, ErrInvalidPhone
	}

	return contactService.ContactRepository.CreateContact(ctx, contact)
}

func (contactService *ContactService) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	return contactService.ContactRepository.GetContactByID(ctx, contactID)
}

func (contactService *ContactService) LookupByPhone(ctx context.Context, phoneNumber string) (*Contact, error) {
	return contactService.ContactRepository.GetContactByPhone(ctx, phoneNumber)
}

// EnsureContactForPhone returns the contact for an E.164 phone,
// creating a bare contact when the caller is unknown.
func (contactService *ContactService) EnsureContactForPhone(
	ctx context.Context,
	phoneNumber string,
) (*Contact, error) {
	if !phone.IsValidE164(phoneNumber) {
		return nil, ErrInvalidPhone
	}

	existing, err := contactService.ContactRepository.GetContactByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	created, err := contactService.ContactRepository.CreateContact(ctx, &Contact{
		Name:  phoneNumber,
		Phone: phoneNumber,
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("auto-created contact for unknown caller",
		zap.String("contact_id", created.ID),
		zap.String("phone", phoneNumber),
	)

	return created, nil
}

// AddMemory records a fact about a contact. The contact must exist; the
// optional callID links the memory to the call it came from.
func (contactService *ContactService) AddMemory(
	ctx context.Context,
	contactID, content, source string,
	callID *string,
) (*Memory, error) {
	existing, err := contactService.ContactRepository.GetContactByID(ctx, contactID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrContactNotFound
	}

	return contactService.ContactRepository.CreateMemory(ctx, &Memory{
		ContactID: contactID,
		Content:   content,
		Source:    source,
		CallID:    callID,
	})
}
