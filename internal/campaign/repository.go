package campaign

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
	ErrInvalidCampaignResult = errors.New("invalid result type, it should be pointer to Campaign struct")
	ErrInvalidUploadResult   = errors.New("invalid result type, it should be pointer to Upload struct")
)

type CampaignRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *CampaignRepository {
	cbSettings := database.GetCircuitBreakerSettings()

	return &CampaignRepository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[any](cbSettings),
	}
}

func (campaignRepository *CampaignRepository) CreateCampaign(
	ctx context.Context,
	campaign *Campaign,
) (*Campaign, error) {
	result, err := campaignRepository.CircuitBreaker.Execute(func() (any, error) {
		if campaign.ID == "" {
			campaign.ID = uuid.NewString()
		}

		err := campaignRepository.DBConn.WithContext(ctx).Create(campaign).Error
		if err != nil {
			logging.Logger.Error("[CreateCampaign] Failed to create campaign",
				zap.String("name", campaign.Name),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return campaign, nil
	})
	if err != nil {
		return nil, err
	}

	created, ok := result.(*Campaign)
	if !ok {
		return nil, ErrInvalidCampaignResult
	}

	return created, nil
}

// GetCampaignByID returns the campaign, or nil when no such campaign exists.
func (campaignRepository *CampaignRepository) GetCampaignByID(
	ctx context.Context,
	campaignID string,
) (*Campaign, error) {
	result, err := campaignRepository.CircuitBreaker.Execute(func() (any, error) {
		var campaign Campaign

		err := campaignRepository.DBConn.WithContext(ctx).
			Where("id = ?", campaignID).
			First(&campaign).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*Campaign)(nil), nil
		}

		if err != nil {
			return nil, err
		}

		return &campaign, nil
	})
	if err != nil {
		return nil, err
	}

	campaign, ok := result.(*Campaign)
	if !ok {
		return nil, ErrInvalidCampaignResult
	}

	return campaign, nil
}

// CreateUploadWithContacts inserts the upload and its batch contacts in
// one transaction so TotalRows can never drift from the produced rows.
func (campaignRepository *CampaignRepository) CreateUploadWithContacts(
	ctx context.Context,
	upload *Upload,
	contacts []BatchContact,
) (*Upload, error) {
	result, err := campaignRepository.CircuitBreaker.Execute(func() (any, error) {
		err := campaignRepository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if upload.ID == "" {
				upload.ID = uuid.NewString()
			}

			upload.TotalRows = len(contacts)

			err := tx.Create(upload).Error
			if err != nil {
				return err
			}

			for idx := range contacts {
				contacts[idx].ID = uuid.NewString()
				contacts[idx].UploadID = upload.ID
				contacts[idx].RowIndex = idx
			}

			return tx.Create(&contacts).Error
		})
		if err != nil {
			logging.Logger.Error("[CreateUploadWithContacts] Failed to ingest upload",
				zap.String("campaign_id", upload.CampaignID),
				zap.String("filename", upload.Filename),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return upload, nil
	})
	if err != nil {
		return nil, err
	}

	created, ok := result.(*Upload)
	if !ok {
		return nil, ErrInvalidUploadResult
	}

	return created, nil
}

// GetUploadByID returns the upload, or nil when no such upload exists.
func (campaignRepository *CampaignRepository) GetUploadByID(ctx context.Context, uploadID string) (*Upload, error) {
	result, err := campaignRepository.CircuitBreaker.Execute(func() (any, error) {
		var upload Upload

		err := campaignRepository.DBConn.WithContext(ctx).
			Where("id = ?", uploadID).
			First(&upload).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*Upload)(nil), nil
		}

		if err != nil {
			return nil, err
		}

		return &upload, nil
	})
	if err != nil {
		return nil, err
	}

	upload, ok := result.(*Upload)
	if !ok {
		return nil, ErrInvalidUploadResult
	}

	return upload, nil
}

// ListBatchContacts returns the upload's batch contacts in source-file
// row order.
func (campaignRepository *CampaignRepository) ListBatchContacts(
	ctx context.Context,
	uploadID string,
) ([]BatchContact, error) {
	var contacts []BatchContact

	_, err := campaignRepository.CircuitBreaker.Execute(func() (any, error) {
		err := campaignRepository.DBConn.WithContext(ctx).
			Where("upload_id = ?", uploadID).
			Order("row_index ASC").
			Find(&contacts).Error

		return nil, err
	})
	if err != nil {
		return nil, err
	}

	return contacts, nil
}
