/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event bus selection.
const (
	EventBusMemory = "memory"
	EventBusRedis  = "redis"
	EventBusNATS   = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string

	// Plant calendar
	Timezone    string
	Location    *time.Location
	WeekendDays []time.Weekday

	// Reservation ledger
	ReservationScope  string
	ReservationPrefix string

	// Expiry sweep
	ExpiryGrace     time.Duration
	ExpiryInterval  time.Duration
	ExpiryBatchSize int

	// Batch planner
	PlannerAnchor  string
	PlannerBuffer  time.Duration
	ProductCatalog string

	// Redis: cache, leader election, redis event bus
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CacheEnabled          bool
	LeaderElectionEnabled bool
	InstanceID            string

	// Events and order-creation requests
	EventBus            string
	NATSURL             string
	OrderRequestSubject string
	OrderWebhookURL     string
	OrderWebhookSecret  string
	OutboxInterval      time.Duration

	// Calendar export
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO etc.)
	S3UsePathStyle    bool
	ExportDir         string

	// Observability
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
	MetricsEnabled    bool
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"KFSH_ENV", "APP_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"KFSH_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"KFSH_HTTP_PORT", "PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"KFSH_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"KFSH_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnvAny([]string{"KFSH_JWT_SIGNING_KEY", "JWT_SIGNING_KEY"}, ""),

		Timezone: getEnvAny([]string{"KFSH_TIMEZONE", "TZ"}, "Asia/Riyadh"),

		ReservationScope:  getEnvAny([]string{"KFSH_RESERVATION_SCOPE"}, "global"),
		ReservationPrefix: getEnvAny([]string{"KFSH_RESERVATION_PREFIX"}, "RSV"),

		ExpiryGrace:     time.Duration(getEnvIntAny([]string{"KFSH_EXPIRY_GRACE_MINUTES"}, 1440)) * time.Minute,
		ExpiryInterval:  time.Duration(getEnvIntAny([]string{"KFSH_EXPIRY_INTERVAL_SECONDS"}, 60)) * time.Second,
		ExpiryBatchSize: getEnvIntAny([]string{"KFSH_EXPIRY_BATCH_SIZE"}, 200),

		PlannerAnchor:  strings.ToLower(getEnvAny([]string{"KFSH_PLANNER_ANCHOR"}, "earliest")),
		PlannerBuffer:  time.Duration(getEnvIntAny([]string{"KFSH_PLANNER_BUFFER_MINUTES"}, 60)) * time.Minute,
		ProductCatalog: getEnvAny([]string{"KFSH_PRODUCT_CATALOG"}, "./products.yaml"),

		RedisAddr:             getEnvAny([]string{"KFSH_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"KFSH_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"KFSH_REDIS_DB"}, 0),
		CacheEnabled:          getEnvBoolAny([]string{"KFSH_CACHE_ENABLED"}, false),
		LeaderElectionEnabled: getEnvBoolAny([]string{"KFSH_LEADER_ELECTION_ENABLED"}, false),
		InstanceID:            getEnvAny([]string{"KFSH_INSTANCE_ID", "HOSTNAME"}, ""),

		EventBus:            strings.ToLower(getEnvAny([]string{"KFSH_EVENT_BUS"}, EventBusMemory)),
		NATSURL:             getEnvAny([]string{"KFSH_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		OrderRequestSubject: getEnvAny([]string{"KFSH_ORDER_REQUEST_SUBJECT"}, "kfsh.orders.create"),
		OrderWebhookURL:     getEnvAny([]string{"KFSH_ORDER_WEBHOOK_URL"}, ""),
		OrderWebhookSecret:  getEnvAny([]string{"KFSH_ORDER_WEBHOOK_SECRET"}, ""),
		OutboxInterval:      time.Duration(getEnvIntAny([]string{"KFSH_OUTBOX_INTERVAL_SECONDS"}, 5)) * time.Second,

		S3AccessKeyID:     getEnvAny([]string{"KFSH_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"KFSH_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"KFSH_S3_REGION", "AWS_REGION"}, "me-central-1"),
		S3Bucket:          getEnvAny([]string{"KFSH_S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"KFSH_S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"KFSH_S3_USE_PATH_STYLE"}, false),
		ExportDir:         getEnvAny([]string{"KFSH_EXPORT_DIR"}, "./exports"),

		TracingEnabled:    getEnvBoolAny([]string{"KFSH_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"KFSH_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"KFSH_TRACING_SAMPLE_RATE"}, 1.0),
		MetricsEnabled:    getEnvBoolAny([]string{"KFSH_METRICS_ENABLED"}, true),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("KFSH_DB_DSN or DATABASE_URL must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("KFSH_JWT_SIGNING_KEY or JWT_SIGNING_KEY must be provided")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	weekend, err := ParseWeekdays(getEnvAny([]string{"KFSH_WEEKEND_DAYS"}, "fri,sat"))
	if err != nil {
		return nil, err
	}
	cfg.WeekendDays = weekend

	if cfg.PlannerAnchor != "earliest" && cfg.PlannerAnchor != "latest" {
		return nil, fmt.Errorf("KFSH_PLANNER_ANCHOR must be earliest or latest, got %q", cfg.PlannerAnchor)
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if cfg.ExpiryGrace < 0 {
		return nil, fmt.Errorf("KFSH_EXPIRY_GRACE_MINUTES must not be negative")
	}

	return cfg, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays parses a comma separated list such as "fri,sat".
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		d, ok := weekdayNames[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
