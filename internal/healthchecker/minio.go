package healthchecker

import (
	"context"
	"time"

	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/minio"
)

func CheckMinio() error {
	client, err := minio.NewMinioClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(config.Conf.MinioTimeout)*time.Second,
	)
	defer cancel()

	_, err = client.Client.BucketExists(ctx, config.Conf.MinioBucketName)

	return err
}
