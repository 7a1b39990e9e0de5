package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voqo-ai/voqo/internal/call"
	"github.com/voqo-ai/voqo/internal/campaign"
	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/contact"
	"github.com/voqo-ai/voqo/internal/job"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/settings"
	"go.uber.org/zap"
)

// Server exposes the control-plane API and the provider webhook.
type Server struct {
	CampaignService *campaign.CampaignService
	ContactService  *contact.ContactService
	SettingsService *settings.SettingsService
	CallService     *call.CallService
	Engine          *job.Engine
}

func NewServer(
	campaignService *campaign.CampaignService,
	contactService *contact.ContactService,
	settingsService *settings.SettingsService,
	callService *call.CallService,
	engine *job.Engine,
) *Server {
	return &Server{
		CampaignService: campaignService,
		ContactService:  contactService,
		SettingsService: settingsService,
		CallService:     callService,
		Engine:          engine,
	}
}

func (server *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", server.healthz)
	router.POST("/webhooks/elevenlabs", server.handleElevenLabsWebhook)

	v1 := router.Group("/v1")
	{
		v1.POST("/campaigns", server.createCampaign)
		v1.GET("/campaigns/:id", server.getCampaign)
		v1.POST("/campaigns/:id/uploads", server.ingestUpload)

		v1.POST("/jobs", server.createJob)
		v1.GET("/jobs/:id", server.getJob)
		v1.POST("/jobs/:id/start", server.startJob)
		v1.POST("/jobs/:id/cancel", server.cancelJob)

		v1.POST("/contacts", server.createContact)
		v1.GET("/contacts/:id", server.getContact)
		v1.GET("/contacts/:id/memories", server.listMemories)
		v1.POST("/contacts/:id/memories", server.addMemory)

		v1.GET("/settings/:key", server.getSetting)
		v1.PUT("/settings/:key", server.putSetting)
	}

	return router
}

// Run serves until the context is cancelled, then drains with the
// configured timeout.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + config.Conf.ServerPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: time.Duration(config.Conf.ServerTimeout) * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	logging.Logger.Info("[Run] HTTP server listening", zap.String("port", config.Conf.ServerPort))

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(config.Conf.ServerTimeout)*time.Second,
	)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
