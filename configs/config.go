package configs

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/tidebank/ledger-core/pkg/utils"
	"go.uber.org/zap"
)

type Config struct {
	Port            string `mapstructure:"PORT" validate:"required"`
	PrimaryDbAddr   string `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReplicaDbAddr   string `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons       int32  `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons       int32  `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`
	RedisAddr       string `mapstructure:"REDIS_ADDR" validate:"required"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS" validate:"required"`
	KafkaAuditTopic string `mapstructure:"KAFKA_AUDIT_TOPIC" validate:"required"`
	KafkaPartition  uint32 `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	TxnRateLimit    int    `mapstructure:"TXN_RATE_LIMIT" validate:"min=0"`
	TxnRateBurst    int    `mapstructure:"TXN_RATE_BURST" validate:"min=0"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("KAFKA_AUDIT_TOPIC", "ledger.transactions.audit")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("TXN_RATE_LIMIT", "0") // 0 disables the limiter
	viper.SetDefault("TXN_RATE_BURST", "100")

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running in test mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running in development mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}
	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
