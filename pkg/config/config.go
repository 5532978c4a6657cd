package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Dataset  DatasetConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Ingest   IngestConfig
	Energy   EnergyConfig
}

type DatasetConfig struct {
	Source           string // "csv" or "postgres"
	CSVPath          string
	StrictTimestamps bool
}

type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	TopicEvents   string
	GroupID       string
	NumPartitions int
}

type IngestConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

type EnergyConfig struct {
	ScaleFactor    float64
	EmissionFactor float64
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Dataset: DatasetConfig{
			Source:           getEnv("DATASET_SOURCE", "csv"),
			CSVPath:          getEnv("DATASET_CSV_PATH", "combined_ai_energy_with_estimates.csv"),
			StrictTimestamps: getEnvAsBool("STRICT_TIMESTAMPS", false),
		},
		HTTP: HTTPConfig{
			Port:            getEnvAsInt("HTTP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "energy_user"),
			Password: getEnv("DB_PASSWORD", "energy_pass"),
			DBName:   getEnv("DB_NAME", "energy_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("CACHE_ENABLED", false),
			TTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicEvents:   getEnv("KAFKA_TOPIC_EVENTS", "energy.inference.events"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "ingest-group"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
		},
		Ingest: IngestConfig{
			BatchSize:     getEnvAsInt("INGEST_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("INGEST_FLUSH_INTERVAL", 5*time.Second),
		},
		Energy: EnergyConfig{
			ScaleFactor:    getEnvAsFloat("ENERGY_SCALE_FACTOR", 50493),
			EmissionFactor: getEnvAsFloat("ENERGY_EMISSION_FACTOR", 0.475),
		},
	}

	if config.Dataset.Source != "csv" && config.Dataset.Source != "postgres" {
		return nil, fmt.Errorf("invalid DATASET_SOURCE %q (expected csv or postgres)", config.Dataset.Source)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
