package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/voqo-ai/voqo/internal/agent"
	"github.com/voqo-ai/voqo/internal/call"
	"github.com/voqo-ai/voqo/internal/campaign"
	"github.com/voqo-ai/voqo/internal/contact"
	"github.com/voqo-ai/voqo/internal/job"
	"github.com/voqo-ai/voqo/internal/settings"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type stubDialer struct {
	mu     sync.Mutex
	nextID int
}

func (dialer *stubDialer) PlaceCall(_ context.Context, _ job.DialRequest) (string, error) {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()

	dialer.nextID++

	return fmt.Sprintf("conv-%d", dialer.nextID), nil
}

type apiFixture struct {
	db     *gorm.DB
	router *gin.Engine
	agent  *agent.Agent
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&agent.Agent{},
		&agent.CustomFunction{},
		&contact.Contact{},
		&contact.Memory{},
		&campaign.Campaign{},
		&campaign.Upload{},
		&campaign.BatchContact{},
		&call.Call{},
		&job.Job{},
		&job.JobCall{},
		&settings.Setting{},
	)
	require.NoError(t, err)

	contactService := contact.NewService(db)
	settingsService := settings.NewService(db)
	campaignService := campaign.NewService(db)
	callService := call.NewService(db, contactService, settingsService, nil, nil, nil)

	engine, err := job.NewEngine(
		job.NewRepository(db),
		campaignService.CampaignRepository,
		agent.NewRepository(db),
		callService.CallRepository,
		&stubDialer{},
	)
	require.NoError(t, err)
	t.Cleanup(engine.Release)

	testAgent := &agent.Agent{
		ID:                "agent-1",
		Name:              "sales",
		SystemPrompt:      "prompt",
		Enabled:           true,
		ElevenLabsAgentID: "el-1",
	}
	require.NoError(t, db.Create(testAgent).Error)

	server := NewServer(campaignService, contactService, settingsService, callService, engine)

	return &apiFixture{db: db, router: server.Router(), agent: testAgent}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	switch payload := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(payload)
	default:
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	fx.router.ServeHTTP(recorder, req)

	return recorder
}

func TestHealthz(t *testing.T) {
	fx := newAPIFixture(t)

	resp := fx.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)

	resp := fx.do(t, http.MethodPost, "/v1/campaigns", gin.H{"name": "spring listings"})
	require.Equal(t, http.StatusCreated, resp.Code)

	var createdCampaign campaign.Campaign
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &createdCampaign))

	resp = fx.do(t, http.MethodPost, "/v1/campaigns/"+createdCampaign.ID+"/uploads", gin.H{
		"filename": "contacts.csv",
		"rows": []gin.H{
			{"phone": "+15550000001", "name": "Avery"},
			{"phone": "+15550000002", "name": "Blake"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var upload campaign.Upload
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &upload))
	require.Equal(t, 2, upload.TotalRows)

	resp = fx.do(t, http.MethodPost, "/v1/jobs", gin.H{
		"campaign_id": createdCampaign.ID,
		"upload_id":   upload.ID,
		"agent_id":    fx.agent.ID,
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var createdJob job.Job
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &createdJob))
	require.Equal(t, job.StatusPending, createdJob.Status)

	resp = fx.do(t, http.MethodPost, "/v1/jobs/"+createdJob.ID+"/start", nil)
	require.Equal(t, http.StatusAccepted, resp.Code)

	// Dispatch runs in the background; poll until terminal.
	require.Eventually(t, func() bool {
		var current job.Job
		err := fx.db.First(&current, "id = ?", createdJob.ID).Error

		return err == nil && job.IsTerminalStatus(current.Status)
	}, 5*time.Second, 10*time.Millisecond)

	resp = fx.do(t, http.MethodGet, "/v1/jobs/"+createdJob.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var detail struct {
		Job      job.Job       `json:"job"`
		JobCalls []job.JobCall `json:"job_calls"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	require.Equal(t, job.StatusCompleted, detail.Job.Status)
	require.Equal(t, 2, detail.Job.CompletedCalls)
	require.Len(t, detail.JobCalls, 2)

	resp = fx.do(t, http.MethodPost, "/v1/jobs/"+createdJob.ID+"/cancel", nil)
	require.Equal(t, http.StatusConflict, resp.Code, "terminal jobs cannot be cancelled")
}

func TestCreateJobConflictsOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)

	resp := fx.do(t, http.MethodPost, "/v1/jobs", gin.H{
		"campaign_id": "missing",
		"upload_id":   "missing",
		"agent_id":    fx.agent.ID,
	})
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = fx.do(t, http.MethodPost, "/v1/jobs/missing/start", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWebhookProcessing(t *testing.T) {
	fx := newAPIFixture(t)

	created := &call.Call{
		ID:                       "call-1",
		AgentID:                  fx.agent.ID,
		ElevenLabsConversationID: "conv-known",
		Direction:                call.DirectionOutbound,
		Status:                   call.StatusInProgress,
		FromPhone:                "+15559990000",
		ToPhone:                  "+15550000001",
	}
	require.NoError(t, fx.db.Create(created).Error)

	event := gin.H{
		"type": "post_call_transcription",
		"data": gin.H{
			"conversation_id": "conv-known",
			"status":          "done",
			"transcript": []gin.H{
				{"role": "agent", "message": "Hello", "time_in_call_secs": 0.5},
				{"role": "user", "message": "Hi", "time_in_call_secs": 2.0},
			},
			"analysis": gin.H{"transcript_summary": "short chat"},
			"metadata": gin.H{"start_time_unix_secs": 1756300000, "call_duration_secs": 42},
		},
	}

	resp := fx.do(t, http.MethodPost, "/webhooks/elevenlabs", event)
	require.Equal(t, http.StatusOK, resp.Code)

	var final call.Call
	require.NoError(t, fx.db.First(&final, "id = ?", "call-1").Error)
	require.Equal(t, call.StatusCompleted, final.Status)
	require.Equal(t, "short chat", final.Summary)
	require.Equal(t, 42, final.DurationSeconds)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.EndedAt)

	// Redelivery is a 200 no-op.
	resp = fx.do(t, http.MethodPost, "/webhooks/elevenlabs", event)
	require.Equal(t, http.StatusOK, resp.Code)

	// Unknown conversations are acknowledged and dropped.
	resp = fx.do(t, http.MethodPost, "/webhooks/elevenlabs", gin.H{
		"type": "post_call_transcription",
		"data": gin.H{"conversation_id": "conv-ghost", "status": "done"},
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var dropped struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &dropped))
	require.Equal(t, "dropped", dropped.Status)
}

func TestWebhookInitiationFailure(t *testing.T) {
	fx := newAPIFixture(t)

	require.NoError(t, fx.db.Create(&call.Call{
		ID:                       "call-2",
		AgentID:                  fx.agent.ID,
		ElevenLabsConversationID: "conv-fail",
		Direction:                call.DirectionOutbound,
		Status:                   call.StatusInProgress,
		FromPhone:                "+15559990000",
		ToPhone:                  "+15550000002",
	}).Error)

	resp := fx.do(t, http.MethodPost, "/webhooks/elevenlabs", gin.H{
		"type": "call_initiation_failure",
		"data": gin.H{"conversation_id": "conv-fail"},
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var final call.Call
	require.NoError(t, fx.db.First(&final, "id = ?", "call-2").Error)
	require.Equal(t, call.StatusFailed, final.Status)
}

func TestSettingsRoundTrip(t *testing.T) {
	fx := newAPIFixture(t)

	resp := fx.do(t, http.MethodGet, "/v1/settings/sms_enabled", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = fx.do(t, http.MethodPut, "/v1/settings/sms_enabled", []byte("true"))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = fx.do(t, http.MethodGet, "/v1/settings/sms_enabled", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var setting settings.Setting
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &setting))
	require.Equal(t, "sms_enabled", setting.Key)
	require.JSONEq(t, "true", string(setting.Value))

	resp = fx.do(t, http.MethodPut, "/v1/settings/sms_enabled", []byte("{not json"))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
