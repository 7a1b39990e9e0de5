package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/minio"
	"go.uber.org/zap"
)

var ErrFetchRecording = errors.New("failed to fetch recording from provider")

// RecordingService copies call recordings from the provider's expiring
// URLs into durable object storage. It implements
// call.RecordingArchiver.
type RecordingService struct {
	MinioClient *minio.MinioClient
}

func NewService(minioClient *minio.MinioClient) *RecordingService {
	return &RecordingService{MinioClient: minioClient}
}

// Archive downloads the recording and re-uploads it under the call id,
// returning the durable URL. The provider URL expires; the stored copy
// does not.
func (recordingService *RecordingService) Archive(ctx context.Context, callID, recordingURL string) (string, error) {
	buffer, err := recordingService.fetchRecording(ctx, recordingURL)
	if err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("recordings/%s.mp3", callID)

	url, err := recordingService.MinioClient.Upload(ctx, buffer, objectKey)
	if err != nil {
		return "", err
	}

	logging.Logger.Info("[Archive] Recording archived",
		zap.String("call_id", callID),
		zap.String("url", url),
	)

	return url, nil
}

func (recordingService *RecordingService) fetchRecording(ctx context.Context, recordingURL string) (*bytes.Buffer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: time.Duration(config.Conf.MinioTimeout) * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		cerr := resp.Body.Close()
		if cerr != nil {
			logging.Logger.Error("Failed to close response body", zap.String("error", cerr.Error()))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchRecording, resp.StatusCode)
	}

	buf := new(bytes.Buffer)

	_, err = io.Copy(buf, resp.Body)
	if err != nil {
		return nil, err
	}

	return buf, nil
}
