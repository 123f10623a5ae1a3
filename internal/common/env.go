package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything read from the environment at process start.
type Config struct {
	AppEnv        string
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	RedisAddr     string
	RedisPassword string
	LogPath       string
	KeyPath       string
	CertPath      string

	ListenAddr      string // gin API listen address
	ProgressRPCAddr string // callback address the worker pushes progress events to

	WorkerConcurrency       int // size of the worker pool, one run controller per slot
	MaxAttempts             int // self-correction attempts per execution episode
	MaxVerificationAttempts int
	AttemptTimeoutSeconds   int
	VerifyTimeoutSeconds    int

	CapabilityConfigPath string
}

const (
	JWTKey       = "ace-engine-key"
	JWTExpire    = 24 * time.Hour
	JWTNewExpire = time.Hour
)

var config Config

func GetConfig() Config {
	return config
}

func InitConf() {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "3306"))
	concurrency, _ := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "4"))
	maxAttempts, _ := strconv.Atoi(getEnv("MAX_ATTEMPTS", "3"))
	maxVerify, _ := strconv.Atoi(getEnv("MAX_VERIFICATION_ATTEMPTS", "3"))
	attemptTimeout, _ := strconv.Atoi(getEnv("ATTEMPT_TIMEOUT_SECONDS", "300"))
	verifyTimeout, _ := strconv.Atoi(getEnv("VERIFY_TIMEOUT_SECONDS", "120"))

	config = Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        dbPort,
		DBUser:        getEnv("DB_USER", ""),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "ace"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LogPath:       getEnv("LOG_PATH", "./logs/ace.log"),
		KeyPath:       getEnv("KEY_PATH", ""),
		CertPath:      getEnv("CERT_PATH", ""),

		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		ProgressRPCAddr: getEnv("PROGRESS_RPC_ADDR", "localhost:8081"),

		WorkerConcurrency:       concurrency,
		MaxAttempts:             maxAttempts,
		MaxVerificationAttempts: maxVerify,
		AttemptTimeoutSeconds:   attemptTimeout,
		VerifyTimeoutSeconds:    verifyTimeout,

		CapabilityConfigPath: getEnv("CAPABILITY_CONFIG", "./capabilities.yaml"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
