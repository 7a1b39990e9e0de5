package voqo

import (
	"context"

	"github.com/voqo-ai/voqo/internal/agent"
	"github.com/voqo-ai/voqo/internal/call"
	"github.com/voqo-ai/voqo/internal/campaign"
	"github.com/voqo-ai/voqo/internal/circuitbreak"
	"github.com/voqo-ai/voqo/internal/contact"
	"github.com/voqo-ai/voqo/internal/database"
	"github.com/voqo-ai/voqo/internal/elevenlabs"
	"github.com/voqo-ai/voqo/internal/healthchecker"
	"github.com/voqo-ai/voqo/internal/httpapi"
	"github.com/voqo-ai/voqo/internal/job"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/minio"
	"github.com/voqo-ai/voqo/internal/recording"
	"github.com/voqo-ai/voqo/internal/settings"
	"github.com/voqo-ai/voqo/internal/sms"
	"github.com/voqo-ai/voqo/internal/summarizer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Voqo struct {
	DBConn               *gorm.DB
	MinioClient          *minio.MinioClient
	CallService          *call.CallService
	Engine               *job.Engine
	ReconcilerWorker     *job.ReconcilerWorker
	Server               *httpapi.Server
	HealthCheckerService *healthchecker.Healthchecker
}

func NewApp(ctxCancelFun context.CancelFunc) (*Voqo, error) {
	logging.Logger.Info("[NewApp] Initializing Voqo application...")

	healthcheckerService := healthchecker.NewService(ctxCancelFun)

	logging.Logger.Info("[NewApp] Health checker service created")

	dbConn, err := database.NewDatabase()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to initialize database", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Database connection established")

	minioClient, err := minio.NewMinioClient()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to initialize Minio client", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Minio client created")

	contactService := contact.NewService(dbConn)
	settingsService := settings.NewService(dbConn)
	campaignService := campaign.NewService(dbConn)

	callService := call.NewService(
		dbConn,
		contactService,
		settingsService,
		summarizer.NewClient(),
		sms.NewService(),
		recording.NewService(minioClient),
	)

	logging.Logger.Info("[NewApp] Call service created")

	engine, err := job.NewEngine(
		job.NewRepository(dbConn),
		campaignService.CampaignRepository,
		agent.NewRepository(dbConn),
		callService.CallRepository,
		elevenlabs.NewService(),
	)
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create job engine", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Job engine created")

	reconcilerWorker, err := job.NewReconcilerWorker(engine)
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create reconciler worker", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Reconciler worker created")

	server := httpapi.NewServer(campaignService, contactService, settingsService, callService, engine)

	logging.Logger.Info("[NewApp] Initializing circuit breakers...")
	circuitbreak.Init()
	logging.Logger.Info("[NewApp] Circuit breakers initialized")

	return &Voqo{
		DBConn:               dbConn,
		MinioClient:          minioClient,
		CallService:          callService,
		Engine:               engine,
		ReconcilerWorker:     reconcilerWorker,
		Server:               server,
		HealthCheckerService: healthcheckerService,
	}, nil
}

func (app *Voqo) Run(ctx context.Context) error {
	logging.Logger.Info("[Run] Starting app goroutines...")

	logging.Logger.Info("[Run] Starting health checker monitor goroutine")

	go app.HealthCheckerService.Monitor()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logging.Logger.Info("[Run] Starting reconciler worker")
		app.ReconcilerWorker.Run(groupCtx)

		return nil
	})

	group.Go(func() error {
		logging.Logger.Info("[Run] Starting HTTP server (BLOCKING)")

		return app.Server.Run(groupCtx)
	})

	err := group.Wait()
	if err != nil {
		logging.Logger.Error("[Run] App goroutine returned error", zap.Error(err))
	}

	app.shutdown()

	return err
}

func (app *Voqo) shutdown() {
	logging.Logger.Info("[Run] Releasing worker pools...")
	app.Engine.Release()
	app.ReconcilerWorker.WorkerPool.Release()
	logging.Logger.Info("[Run] ===== App shutdown complete =====")
}
