package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/voqo-ai/voqo/internal/call"
	"github.com/voqo-ai/voqo/internal/campaign"
	"github.com/voqo-ai/voqo/internal/contact"
	"github.com/voqo-ai/voqo/internal/job"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/metrics"
	"go.uber.org/zap"
)

func (server *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createCampaignRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (server *Server) createCampaign(c *gin.Context) {
	var req createCampaignRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	created, err := server.CampaignService.CreateCampaign(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusCreated, created)
}

func (server *Server) getCampaign(c *gin.Context) {
	found, err := server.CampaignService.GetCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)

		return
	}

	if found == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})

		return
	}

	c.JSON(http.StatusOK, found)
}

type ingestUploadRequest struct {
	Filename string              `json:"filename" binding:"required"`
	Rows     []campaign.BatchRow `json:"rows"`
}

func (server *Server) ingestUpload(c *gin.Context) {
	var req ingestUploadRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	upload, err := server.CampaignService.IngestUpload(c.Request.Context(), c.Param("id"), req.Filename, req.Rows)
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusCreated, upload)
}

type createJobRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
	UploadID   string `json:"upload_id"   binding:"required"`
	AgentID    string `json:"agent_id"    binding:"required"`
}

func (server *Server) createJob(c *gin.Context) {
	var req createJobRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	created, err := server.Engine.CreateJob(c.Request.Context(), req.CampaignID, req.UploadID, req.AgentID)
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusCreated, created)
}

func (server *Server) getJob(c *gin.Context) {
	jobID := c.Param("id")

	found, err := server.Engine.JobRepository.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		abortWithError(c, err)

		return
	}

	if found == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "job not found"})

		return
	}

	jobCalls, err := server.Engine.JobRepository.ListJobCalls(c.Request.Context(), jobID)
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"job": found, "job_calls": jobCalls})
}

// startJob acknowledges the start and dispatches in the background; job
// progress is observable through GET /v1/jobs/:id.
func (server *Server) startJob(c *gin.Context) {
	jobID := c.Param("id")

	found, err := server.Engine.JobRepository.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		abortWithError(c, err)

		return
	}

	if found == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "job not found"})

		return
	}

	if found.Status != job.StatusPending {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "job is not in pending status"})

		return
	}

	go func() {
		err := server.Engine.Start(context.Background(), jobID)
		if err != nil {
			logging.Logger.Error("[startJob] Job run failed",
				zap.String("job_id", jobID),
				zap.String("error", err.Error()),
			)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": job.StatusRunning})
}

func (server *Server) cancelJob(c *gin.Context) {
	err := server.Engine.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id"), "status": job.StatusCancelled})
}

type createContactRequest struct {
	Name  string   `json:"name"  binding:"required"`
	Phone string   `json:"phone" binding:"required"`
	Notes string   `json:"notes"`
	Tags  []string `json:"tags"`
}

func (server *Server) createContact(c *gin.Context) {
	var req createContactRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	newContact := &contact.Contact{
		Name:  req.Name,
		Phone: req.Phone,
		Notes: req.Notes,
	}

	if len(req.Tags) > 0 {
		tags, err := json.Marshal(req.Tags)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		newContact.Tags = tags
	}

	created, err := server.ContactService.CreateContact(c.Request.Context(), newContact)
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusCreated, created)
}

func (server *Server) getContact(c *gin.Context) {
	found, err := server.ContactService.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)

		return
	}

	if found == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "contact not found"})

		return
	}

	c.JSON(http.StatusOK, found)
}

func (server *Server) listMemories(c *gin.Context) {
	memories, err := server.ContactService.ContactRepository.ListMemories(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"memories": memories})
}

type addMemoryRequest struct {
	Content string `json:"content" binding:"required"`
}

func (server *Server) addMemory(c *gin.Context) {
	var req addMemoryRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	memory, err := server.ContactService.AddMemory(
		c.Request.Context(),
		c.Param("id"),
		req.Content,
		contact.MemorySourceManual,
		nil,
	)
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusCreated, memory)
}

func (server *Server) getSetting(c *gin.Context) {
	setting, err := server.SettingsService.SettingsRepository.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		abortWithError(c, err)

		return
	}

	if setting == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "setting not set"})

		return
	}

	c.JSON(http.StatusOK, setting)
}

// putSetting stores the raw JSON body as the setting value. Last write
// wins.
func (server *Server) putSetting(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if !json.Valid(body) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "value is not valid JSON"})

		return
	}

	setting, err := server.SettingsService.SettingsRepository.Put(c.Request.Context(), c.Param("key"), body)
	if err != nil {
		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusOK, setting)
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, job.ErrCampaignNotFound),
		errors.Is(err, job.ErrUploadNotFound),
		errors.Is(err, job.ErrAgentNotFound),
		errors.Is(err, job.ErrJobNotFound),
		errors.Is(err, campaign.ErrCampaignNotFound),
		errors.Is(err, contact.ErrContactNotFound):
		status = http.StatusNotFound
	case errors.Is(err, job.ErrAgentDisabled),
		errors.Is(err, job.ErrJobNotStartable),
		errors.Is(err, job.ErrJobNotCancellable):
		status = http.StatusConflict
	case errors.Is(err, job.ErrEmptyUpload),
		errors.Is(err, job.ErrUploadCampaignMismatch),
		errors.Is(err, campaign.ErrEmptyUpload),
		errors.Is(err, campaign.ErrInvalidRowPhone),
		errors.Is(err, contact.ErrInvalidPhone):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logging.Logger.Error("request failed", zap.String("error", err.Error()))
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

const (
	webhookEventTranscription     = "post_call_transcription"
	webhookEventInitiationFailure = "call_initiation_failure"
)

type webhookTranscriptItem struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ConversationID string                  `json:"conversation_id"`
		Status         string                  `json:"status"`
		Transcript     []webhookTranscriptItem `json:"transcript"`
		Analysis       struct {
			TranscriptSummary string `json:"transcript_summary"`
		} `json:"analysis"`
		Metadata struct {
			StartTimeUnixSecs  int64  `json:"start_time_unix_secs"`
			CallDurationSecs   int    `json:"call_duration_secs"`
			RecordingURL       string `json:"recording_url"`
			RecordingExpiresAt *int64 `json:"recording_expires_at_unix_secs"`
		} `json:"metadata"`
	} `json:"data"`
}

// handleElevenLabsWebhook ingests the provider's terminal call events.
// Unknown conversations and duplicate deliveries both return 200: the
// provider retries on anything else and neither case is retryable.
func (server *Server) handleElevenLabsWebhook(c *gin.Context) {
	started := time.Now()
	defer func() {
		metrics.WebhookProcessDuration.Observe(time.Since(started).Seconds())
	}()

	var event webhookEvent

	if err := c.ShouldBindJSON(&event); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	notification := buildNotification(&event)
	if notification == nil {
		logging.Logger.Info("ignoring webhook event", zap.String("type", event.Type))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})

		return
	}

	err := server.CallService.ProcessCompletionNotification(c.Request.Context(), notification)
	if err != nil {
		if errors.Is(err, call.ErrUnknownConversation) {
			logging.Logger.Warn("webhook for unknown conversation",
				zap.String("conversation_id", notification.ConversationID),
			)
			c.JSON(http.StatusOK, gin.H{"status": "dropped"})

			return
		}

		abortWithError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func buildNotification(event *webhookEvent) *call.CompletionNotification {
	var status string

	switch event.Type {
	case webhookEventInitiationFailure:
		status = call.StatusFailed
	case webhookEventTranscription:
		status = mapConversationStatus(event.Data.Status)
	default:
		return nil
	}

	transcript := make([]call.TranscriptItem, 0, len(event.Data.Transcript))
	for _, item := range event.Data.Transcript {
		transcript = append(transcript, call.TranscriptItem{
			Role:    item.Role,
			Content: item.Message,
			Start:   item.TimeInCallSecs,
		})
	}

	notification := &call.CompletionNotification{
		ConversationID:  event.Data.ConversationID,
		Status:          status,
		Transcript:      transcript,
		Summary:         event.Data.Analysis.TranscriptSummary,
		RecordingURL:    event.Data.Metadata.RecordingURL,
		DurationSeconds: event.Data.Metadata.CallDurationSecs,
	}

	if event.Data.Metadata.StartTimeUnixSecs > 0 {
		startedAt := time.Unix(event.Data.Metadata.StartTimeUnixSecs, 0).UTC()
		notification.StartedAt = &startedAt

		endedAt := startedAt.Add(time.Duration(event.Data.Metadata.CallDurationSecs) * time.Second)
		notification.EndedAt = &endedAt
	}

	if event.Data.Metadata.RecordingExpiresAt != nil {
		expiresAt := time.Unix(*event.Data.Metadata.RecordingExpiresAt, 0).UTC()
		notification.RecordingExpiresAt = &expiresAt
	}

	return notification
}

func mapConversationStatus(providerStatus string) string {
	switch providerStatus {
	case "failed", "error":
		return call.StatusFailed
	case "no_answer", "voicemail":
		return call.StatusNoAnswer
	default:
		return call.StatusCompleted
	}
}
