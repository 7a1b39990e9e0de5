package circuitbreak

import "github.com/voqo-ai/voqo/internal/logging"

var CircuitBreakChan chan string

const (
	DBService         = "database"
	ElevenLabsService = "elevenlabs"
	MinioService      = "minio"
)

func Init() {
	CircuitBreakChan = make(chan string)
}

func TriggerError(service string) {
	if CircuitBreakChan == nil {
		logging.Logger.Fatal("voqo app is not created")
	}

	CircuitBreakChan <- service
}
