package sms

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
)

var ErrSendSMSRequest = errors.New("sms send request failed")

type sendSMSRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// SMSService sends follow up text messages through the configured SMS
// gateway. It implements call.SMSSender. Delivery is best effort; a
// failed send never fails the call that triggered it.
type SMSService struct{}

func NewService() *SMSService {
	return &SMSService{}
}

func (smsService *SMSService) Send(ctx context.Context, toPhone, message string) error {
	apiUrl, err := url.JoinPath(config.Conf.SMSBaseUrl, "/v1/messages")
	if err != nil {
		return err
	}

	reqBody, err := json.Marshal(sendSMSRequest{
		From: config.Conf.SMSFromPhone,
		To:   toPhone,
		Body: message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiUrl, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+config.Conf.SMSAPIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: time.Duration(config.Conf.SMSTimeout) * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		cerr := resp.Body.Close()
		if cerr != nil {
			logging.Logger.Error("Failed to close response body", zap.String("error", cerr.Error()))
		}
	}()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logging.Logger.Warn("SMS gateway rejected message",
			zap.String("to_phone", toPhone),
			zap.Int("status_code", resp.StatusCode),
		)

		return ErrSendSMSRequest
	}

	logging.Logger.Info("SMS sent", zap.String("to_phone", toPhone))

	return nil
}
