package summarizer

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/voqo-ai/voqo/internal/call"
	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
)

const systemPrompt = "You summarize phone call transcripts for a real estate " +
	"business. Write two or three sentences covering who called, what they " +
	"wanted and any follow up that was agreed. Plain text only."

// SummarizerClient produces short call summaries with an OpenAI
// compatible chat API. It implements call.Summarizer.
type SummarizerClient struct {
	Client *openai.Client
}

func NewClient() *SummarizerClient {
	opts := []option.RequestOption{
		option.WithBaseURL(config.Conf.SummaryBaseUrl),
		option.WithAPIKey(config.Conf.SummaryAPIKey),
		option.WithRequestTimeout(time.Duration(config.Conf.SummaryTimeout) * time.Second),
	}

	client := openai.NewClient(opts...)

	return &SummarizerClient{Client: &client}
}

func (summarizerClient *SummarizerClient) Summarize(
	ctx context.Context,
	transcript []call.TranscriptItem,
) (string, error) {
	resp, err := summarizerClient.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: config.Conf.SummaryModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(flattenTranscript(transcript)),
		},
	})
	if err != nil {
		logging.Logger.Error("Summary request failed",
			zap.String("error", err.Error()),
		)

		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func flattenTranscript(transcript []call.TranscriptItem) string {
	var builder strings.Builder

	for _, item := range transcript {
		builder.WriteString(item.Role)
		builder.WriteString(": ")
		builder.WriteString(item.Content)
		builder.WriteString("\n")
	}

	return builder.String()
}
