package healthchecker

import (
	"github.com/voqo-ai/voqo/internal/database"
)

func CheckDB() error {
	_, err := database.NewDatabase()
	return err
}
