package env

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	StoreBackend     = "STORE_BACKEND"
	DatabaseURL      = "DATABASE_URL"
	UserSecretKey    = "USER_SECRET"
	ServiceSecretKey = "SERVICE_SECRET"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	AMQPURL          = "AMQP_URL"
	AMQPExchange     = "AMQP_EXCHANGE"
	SweepSchedule    = "SWEEP_SCHEDULE"
	SweepTimeout     = "SWEEP_TIMEOUT"
	SweepLockTTL     = "SWEEP_LOCK_TTL"
	SweepWorkers     = "SWEEP_WORKERS"
	LogLevel         = "LOG_LEVEL"
	ListenAddr       = "LISTEN_ADDR"
	CORSOrigins      = "CORS_ORIGINS"
)

// Require fails fast when any of keys is unset. Binaries call it at startup
// with the variables they actually depend on.
func Require(keys ...string) error {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			return fmt.Errorf("env: required environment variable not set: %s", key)
		}
	}
	return nil
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

// Duration parses key with time.ParseDuration, falling back to defaultVal when
// the variable is unset or malformed.
func Duration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func Int(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
