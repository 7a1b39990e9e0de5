package healthchecker

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
)

// CheckElevenLabs probes the provider's user endpoint, which is the
// cheapest authenticated call the API offers.
func CheckElevenLabs() error {
	apiUrl, err := url.JoinPath(config.Conf.ElevenLabsBaseUrl, "/v1/user")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(config.Conf.ElevenLabsTimeout)*time.Second,
	)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiUrl, nil)
	if err != nil {
		return err
	}

	req.Header.Set("xi-api-key", config.Conf.ElevenLabsAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logging.Logger.Info("elevenlabs api status", zap.Error(err))
		return err
	}

	defer func() {
		cerr := resp.Body.Close()
		if cerr != nil {
			logging.Logger.Error("Failed to close response body", zap.String("error", cerr.Error()))
		}
	}()

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
