package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/voqo-ai/voqo/internal/agent"
	"github.com/voqo-ai/voqo/internal/circuitbreak"
	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/job"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
)

var (
	ErrOutboundCallRequest   = errors.New("elevenlabs outbound call request failed")
	ErrOutboundCallRejected  = errors.New("elevenlabs rejected outbound call")
	ErrMissingConversationID = errors.New("elevenlabs response has no conversation id")
	ErrElevenLabsServerError = errors.New("elevenlabs server error")
)

type outboundCallRequest struct {
	AgentID            string      `json:"agent_id"`
	AgentPhoneNumberID string      `json:"agent_phone_number_id"`
	ToNumber           string      `json:"to_number"`
	ClientData         *clientData `json:"conversation_initiation_client_data,omitempty"`
}

type clientData struct {
	ConfigOverride   *configOverride   `json:"conversation_config_override,omitempty"`
	DynamicVariables map[string]string `json:"dynamic_variables,omitempty"`
}

type configOverride struct {
	Agent agentOverride `json:"agent"`
}

type agentOverride struct {
	Prompt       promptOverride `json:"prompt"`
	FirstMessage string         `json:"first_message,omitempty"`
}

type promptOverride struct {
	Prompt string         `json:"prompt,omitempty"`
	Tools  []toolOverride `json:"tools,omitempty"`
}

type toolOverride struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Method      string `json:"method"`
}

type outboundCallResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	CallSid        string `json:"callSid"`
}

// ElevenLabsService places outbound voice calls through the ElevenLabs
// conversational AI API. It implements job.Dialer.
type ElevenLabsService struct {
	CircuitBreaker *gobreaker.CircuitBreaker[[]byte]
}

func NewService() *ElevenLabsService {
	cbSettings := gobreaker.Settings{
		Name:     "ElevenLabs",
		Interval: time.Duration(config.Conf.ElevenLabsIntervalCB) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Conf.ElevenLabsConsecutiveFailuresCB
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Info("Circuit state changed",
				zap.String("service", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				circuitbreak.TriggerError(circuitbreak.ElevenLabsService)
			}
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, ErrElevenLabsServerError)
		},
	}

	return &ElevenLabsService{
		CircuitBreaker: gobreaker.NewCircuitBreaker[[]byte](cbSettings),
	}
}

// PlaceCall asks ElevenLabs to dial one number. A nil error means the
// provider accepted the call and returned its conversation identifier;
// the call outcome arrives later over the completion webhook.
func (elevenLabsService *ElevenLabsService) PlaceCall(ctx context.Context, request job.DialRequest) (string, error) {
	apiUrl, err := url.JoinPath(config.Conf.ElevenLabsBaseUrl, config.Conf.ElevenLabsOutboundCallPath)
	if err != nil {
		return "", err
	}

	reqBody, err := json.Marshal(buildOutboundCallRequest(request))
	if err != nil {
		return "", err
	}

	body, statusCode, err := elevenLabsService.doRequestWithRetry(ctx, apiUrl, reqBody)
	if err != nil {
		return "", err
	}

	logging.Logger.Info("Outbound call response",
		zap.String("to_phone", request.ToPhone),
		zap.Int("status_code", statusCode),
	)

	if statusCode != http.StatusOK {
		return "", ErrOutboundCallRequest
	}

	var response outboundCallResponse

	err = json.Unmarshal(body, &response)
	if err != nil {
		return "", err
	}

	if !response.Success {
		logging.Logger.Warn("Outbound call rejected",
			zap.String("to_phone", request.ToPhone),
			zap.String("message", response.Message),
		)

		return "", ErrOutboundCallRejected
	}

	if response.ConversationID == "" {
		return "", ErrMissingConversationID
	}

	return response.ConversationID, nil
}

func buildOutboundCallRequest(request job.DialRequest) outboundCallRequest {
	override := &configOverride{
		Agent: agentOverride{
			Prompt: promptOverride{
				Prompt: request.Prompt,
				Tools:  buildToolOverrides(request.Functions),
			},
			FirstMessage: request.Greeting,
		},
	}

	return outboundCallRequest{
		AgentID:            request.AgentExternalID,
		AgentPhoneNumberID: config.Conf.ElevenLabsPhoneNumberID,
		ToNumber:           request.ToPhone,
		ClientData: &clientData{
			ConfigOverride:   override,
			DynamicVariables: request.Variables,
		},
	}
}

func buildToolOverrides(functions []agent.CustomFunction) []toolOverride {
	if len(functions) == 0 {
		return nil
	}

	tools := make([]toolOverride, len(functions))
	for idx, function := range functions {
		tools[idx] = toolOverride{
			Name:        function.Name,
			Description: function.Description,
			URL:         function.Endpoint,
			Method:      function.Method,
		}
	}

	return tools
}

func (elevenLabsService *ElevenLabsService) doRequestWithRetry(
	ctx context.Context,
	apiUrl string,
	reqBody []byte,
) ([]byte, int, error) {
	var (
		body       []byte
		statusCode int
	)

	body, err := elevenLabsService.CircuitBreaker.Execute(func() ([]byte, error) {
		err := retry.Do(
			func() error {
				var err error

				body, statusCode, err = elevenLabsService.doRequest(ctx, apiUrl, reqBody)

				return err
			},
			retry.Attempts(config.Conf.DispatchMaxAttempts),
			retry.DelayType(retry.BackOffDelay),
			retry.Delay(time.Duration(config.Conf.DispatchRetryMinBackoff)*time.Second),
			retry.MaxDelay(time.Duration(config.Conf.DispatchRetryMaxBackoff)*time.Second),
		)

		if statusCode >= http.StatusInternalServerError {
			return nil, ErrElevenLabsServerError
		}

		if err != nil {
			return nil, err
		}

		return body, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return body, statusCode, nil
}

func (elevenLabsService *ElevenLabsService) doRequest(ctx context.Context, apiUrl string, reqBody []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiUrl, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("xi-api-key", config.Conf.ElevenLabsAPIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: time.Duration(config.Conf.ElevenLabsTimeout) * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}

	defer func() {
		cerr := resp.Body.Close()
		if cerr != nil {
			logging.Logger.Error("Failed to close response body", zap.String("error", cerr.Error()))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}
