package main

import (
	"context"

	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/metrics"
	"github.com/voqo-ai/voqo/internal/voqo"
	"go.uber.org/zap"
)

func main() {
	err := config.Validate()
	if err != nil {
		logging.Logger.Fatal("invalid config", zap.String("error", err.Error()))
	}

	go metrics.Run()

	for {
		ctx, cancel := context.WithCancel(context.Background())

		app, err := voqo.NewApp(cancel)
		if err != nil {
			logging.Logger.Fatal("failed to create voqo app", zap.String("error", err.Error()))
		}

		err = app.Run(ctx)
		if err != nil {
			panic(err)
		}

		<-ctx.Done()

		app.HealthCheckerService.Check()

		cancel()
	}
}
