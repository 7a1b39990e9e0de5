package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	PostgresHost            string `mapstructure:"postgres_host"              validate:"required"`
	PostgresUsername        string `mapstructure:"postgres_username"          validate:"required"`
	PostgresPassword        string `mapstructure:"postgres_password"          validate:"required"`
	PostgresPort            string `mapstructure:"postgres_port"              validate:"required"`
	PostgresDatabase        string `mapstructure:"postgres_database"          validate:"required"`
	DBIntervalCB            uint32 `mapstructure:"db_interval_cb"`
	DBConsecutiveFailuresCB uint32 `mapstructure:"db_consecutive_failures_cb"`

	ElevenLabsBaseUrl               string `mapstructure:"elevenlabs_base_url"                validate:"required"`
	ElevenLabsAPIKey                string `mapstructure:"elevenlabs_api_key"                 validate:"required"`
	ElevenLabsPhoneNumberID         string `mapstructure:"elevenlabs_phone_number_id"         validate:"required"`
	ElevenLabsOutboundCallPath      string `mapstructure:"elevenlabs_outbound_call_path"`
	ElevenLabsTimeout               int    `mapstructure:"elevenlabs_timeout"`
	ElevenLabsIntervalCB            uint32 `mapstructure:"elevenlabs_interval_cb"`
	ElevenLabsConsecutiveFailuresCB uint32 `mapstructure:"elevenlabs_consecutive_failures_cb"`

	// One attempt means the engine never retries a rejected placement;
	// the provider's own retry policy is opaque to this service.
	DispatchMaxAttempts     uint `mapstructure:"dispatch_max_attempts"`
	DispatchRetryMinBackoff int  `mapstructure:"dispatch_retry_min_backoff"`
	DispatchRetryMaxBackoff int  `mapstructure:"dispatch_retry_max_backoff"`

	JobPoolSize        int `mapstructure:"job_pool_size"        validate:"min=1"`
	ReconcilerPoolSize int `mapstructure:"reconciler_pool_size" validate:"min=1"`
	ReconcilerInterval int `mapstructure:"reconciler_interval"`

	OutboundCallerPhone string `mapstructure:"outbound_caller_phone" validate:"required"`

	SMSBaseUrl   string `mapstructure:"sms_base_url"`
	SMSAPIKey    string `mapstructure:"sms_api_key"`
	SMSFromPhone string `mapstructure:"sms_from_phone"`
	SMSTimeout   int    `mapstructure:"sms_timeout"`

	SummaryBaseUrl string `mapstructure:"summary_base_url"`
	SummaryAPIKey  string `mapstructure:"summary_api_key"`
	SummaryModel   string `mapstructure:"summary_model"`
	SummaryTimeout int    `mapstructure:"summary_timeout"`

	MinioEndpointURL            string `mapstructure:"minio_endpoint_url"`
	MinioAccessKey              string `mapstructure:"minio_access_key"`
	MinioSecretKey              string `mapstructure:"minio_secret_key"`
	MinioBucketName             string `mapstructure:"minio_bucket_name"`
	MinioPathPrefix             string `mapstructure:"minio_path_prefix"`
	MinioMaxRetryAttempts       uint   `mapstructure:"minio_max_retry_attempts"`
	MinioRetryBackoffMinSeconds int    `mapstructure:"minio_retry_backoff_min_seconds"`
	MinioRetryBackoffMaxSeconds int    `mapstructure:"minio_retry_backoff_max_seconds"`
	MinioTimeout                int    `mapstructure:"minio_timeout"`
	MinioIntervalCB             uint32 `mapstructure:"minio_interval_cb"`
	MinioConsecutiveFailuresCB  uint32 `mapstructure:"minio_consecutive_failures_cb"`

	ServerPort    string `mapstructure:"server_port"`
	ServerTimeout int    `mapstructure:"server_timeout"`

	LogLevel    string `mapstructure:"log_level"`
	LogFilePath string `mapstructure:"log_file_path"`

	HealthCheckerMonitorInterval int `mapstructure:"health_checker_monitor_interval"`

	PrometheusPort    string `mapstructure:"prometheus_port"`
	PrometheusTimeout int    `mapstructure:"prometheus_timeout"`
}

var Conf Config

func init() {
	err := loadEnvConfig(&Conf)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.String("error", err.Error()))
	}
}

func loadEnvConfig(cfg *Config) error {
	viper.AutomaticEnv()
	viper.AllowEmptyEnv(true)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setupDefaults()

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError

		ok := errors.As(err, &configFileNotFoundError)
		if !ok {
			return err
		}
	}

	err = viper.Unmarshal(cfg)
	if err != nil {
		return err
	}

	return nil
}

// Validate enforces the required fields. It is called from the app
// entrypoints rather than init so tests can run without a full env.
func Validate() error {
	return validator.New().Struct(&Conf)
}

func setupDefaults() {
	confType := reflect.TypeOf(Conf)
	for i := range confType.NumField() {
		field := confType.Field(i)
		viper.SetDefault(field.Tag.Get("mapstructure"), "")
	}

	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("LOG_FILE_PATH", "./access.log")
	viper.SetDefault("ELEVENLABS_OUTBOUND_CALL_PATH", "/v1/convai/twilio/outbound-call")
	viper.SetDefault("ELEVENLABS_TIMEOUT", "30")
	viper.SetDefault("ELEVENLABS_INTERVAL_CB", "30")
	viper.SetDefault("ELEVENLABS_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("DISPATCH_MAX_ATTEMPTS", "1")
	viper.SetDefault("DISPATCH_RETRY_MIN_BACKOFF", "1")
	viper.SetDefault("DISPATCH_RETRY_MAX_BACKOFF", "10")
	viper.SetDefault("JOB_POOL_SIZE", "4")
	viper.SetDefault("RECONCILER_POOL_SIZE", "2")
	viper.SetDefault("RECONCILER_INTERVAL", "5")
	viper.SetDefault("SMS_TIMEOUT", "15")
	viper.SetDefault("SUMMARY_MODEL", "gpt-4o-mini")
	viper.SetDefault("SUMMARY_TIMEOUT", "30")
	viper.SetDefault("MINIO_MAX_RETRY_ATTEMPTS", "3")
	viper.SetDefault("MINIO_RETRY_BACKOFF_MIN_SECONDS", "1")
	viper.SetDefault("MINIO_RETRY_BACKOFF_MAX_SECONDS", "10")
	viper.SetDefault("MINIO_TIMEOUT", "60")
	viper.SetDefault("MINIO_INTERVAL_CB", "300")
	viper.SetDefault("MINIO_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_TIMEOUT", "60")
	viper.SetDefault("DB_INTERVAL_CB", "30")
	viper.SetDefault("DB_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("HEALTH_CHECKER_MONITOR_INTERVAL", "60")
	viper.SetDefault("PROMETHEUS_PORT", "2112")
	viper.SetDefault("PROMETHEUS_TIMEOUT", "60")
}
