package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/phone"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrCampaignNotFound = errors.New("campaign does not exist")
	ErrEmptyUpload      = errors.New("upload contains no rows")
	ErrInvalidRowPhone  = errors.New("row phone is not valid E.164")
)

// BatchRow is one already-parsed row of a contact file. CSV parsing
// happens upstream; the service only validates and persists.
type BatchRow struct {
	Phone     string            `json:"phone"`
	Name      string            `json:"name,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

type CampaignService struct {
	CampaignRepository *CampaignRepository
}

func NewService(dbConn *gorm.DB) *CampaignService {
	return &CampaignService{
		CampaignRepository: NewRepository(dbConn),
	}
}

func (campaignService *CampaignService) CreateCampaign(
	ctx context.Context,
	name, description string,
) (*Campaign, error) {
	return campaignService.CampaignRepository.CreateCampaign(ctx, &Campaign{
		Name:        name,
		Description: description,
	})
}

func (campaignService *CampaignService) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	return campaignService.CampaignRepository.GetCampaignByID(ctx, campaignID)
}

// IngestUpload turns parsed rows into an Upload and its BatchContacts.
// Every row phone must be valid E.164; a single bad row rejects the
// whole upload so TotalRows always equals the produced contact count.
func (campaignService *CampaignService) IngestUpload(
	ctx context.Context,
	campaignID, filename string,
	rows []BatchRow,
) (*Upload, error) {
	existing, err := campaignService.CampaignRepository.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrCampaignNotFound
	}

	if len(rows) == 0 {
		return nil, ErrEmptyUpload
	}

	contacts := make([]BatchContact, 0, len(rows))

	for idx, row := range rows {
		if !phone.IsValidE164(row.Phone) {
			return nil, fmt.Errorf("%w: row %d (%s)", ErrInvalidRowPhone, idx, row.Phone)
		}

		var variables []byte

		if len(row.Variables) > 0 {
			variables, err = json.Marshal(row.Variables)
			if err != nil {
				return nil, err
			}
		}

		contacts = append(contacts, BatchContact{
			Phone:     row.Phone,
			Name:      row.Name,
			Variables: variables,
		})
	}

	upload := &Upload{
		CampaignID: campaignID,
		Filename:   filename,
	}

	created, err := campaignService.CampaignRepository.CreateUploadWithContacts(ctx, upload, contacts)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("upload ingested",
		zap.String("upload_id", created.ID),
		zap.String("campaign_id", campaignID),
		zap.Int("total_rows", created.TotalRows),
	)

	return created, nil
}
