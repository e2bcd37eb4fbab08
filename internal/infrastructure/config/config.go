package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/pkg/money"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	GRPCPort      int
	HTTPPort      int
	ServiceName   string
	StorageDriver string
	DB            DBConfig
	Kafka         KafkaConfig
	Redis         RedisConfig
	JWT           JWTConfig
	TLS           TLSConfig
	Telemetry     TelemetryConfig
	Ledger        LedgerConfig
	LogLevel      string
	LogFormat     string
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	Name      string
	SSLMode   string
	MaxConns  int32
	MinConns  int32
	TxTimeout time.Duration
}

// KafkaConfig holds Kafka connection parameters. An empty broker list
// disables the outbox relay and the blotter sync consumer.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	ConsumerGroup  string
	SASLEnabled    bool
	SASLMechanism  string
	SASLUsername   string
	SASLPassword   string
	TLS            bool
	OutboxInterval time.Duration
	OutboxBatch    int
}

// RedisConfig configures the quote cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QuoteTTL time.Duration
}

// JWTConfig selects how bearer tokens are validated: public key first, then
// a key file, then the shared secret.
type JWTConfig struct {
	Issuer        string
	PublicKey     string
	PublicKeyFile string
	Secret        string
}

// TLSConfig enables gRPC server TLS when both files are set.
type TLSConfig struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// Enabled reports whether a certificate pair is configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

// LedgerConfig carries the lending product and cash desk settings.
type LedgerConfig struct {
	Terms              model.LoanTerms
	CashAlertThreshold decimal.Decimal
	BusinessTimezone   string
}

// LoadDotEnv loads variables from path into the process environment. A
// missing file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	terms := model.DefaultLoanTerms()
	return Config{
		GRPCPort:      getEnvInt("GRPC_PORT", 9090),
		HTTPPort:      getEnvInt("HTTP_PORT", 8080),
		ServiceName:   getEnv("SERVICE_NAME", "microfinance-ledger"),
		StorageDriver: getEnv("STORAGE_DRIVER", StoragePostgres),
		DB: DBConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnvInt("DB_PORT", 5432),
			User:      getEnv("DB_USER", "fanders"),
			Password:  getEnv("DB_PASSWORD", ""),
			Name:      getEnv("DB_NAME", "fanders_ledger"),
			SSLMode:   getEnv("DB_SSLMODE", "require"),
			MaxConns:  int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns:  int32(getEnvInt("DB_MIN_CONNS", 2)),
			TxTimeout: getEnvDuration("TX_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvList("KAFKA_BROKERS"),
			Topic:          getEnv("KAFKA_TOPIC", "ledger.events"),
			ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "ledger-blotter-sync"),
			SASLEnabled:    getEnvBool("KAFKA_SASL_ENABLED", false),
			SASLMechanism:  getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
			SASLUsername:   getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:   getEnv("KAFKA_SASL_PASSWORD", ""),
			TLS:            getEnvBool("KAFKA_TLS", false),
			OutboxInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			OutboxBatch:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			QuoteTTL: getEnvDuration("QUOTE_CACHE_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			Issuer:        getEnv("JWT_ISSUER", "fanders-auth"),
			PublicKey:     getEnv("JWT_PUBLIC_KEY", ""),
			PublicKeyFile: getEnv("JWT_PUBLIC_KEY_FILE", ""),
			Secret:        getEnv("JWT_SECRET", ""),
		},
		TLS: TLSConfig{
			CertFile:     getEnv("TLS_CERT_FILE", ""),
			KeyFile:      getEnv("TLS_KEY_FILE", ""),
			ClientCAFile: getEnv("TLS_CLIENT_CA_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Ledger: LedgerConfig{
			Terms: model.LoanTerms{
				InterestRate:          getEnvDecimal("LOAN_INTEREST_RATE", terms.InterestRate),
				InsuranceFee:          getEnvAmount("LOAN_INSURANCE_FEE", terms.InsuranceFee),
				SavingsRate:           getEnvDecimal("LOAN_SAVINGS_RATE", terms.SavingsRate),
				MinPrincipal:          getEnvAmount("LOAN_MIN_AMOUNT", terms.MinPrincipal),
				MaxPrincipal:          getEnvAmount("LOAN_MAX_AMOUNT", terms.MaxPrincipal),
				MinTermWeeks:          getEnvInt("LOAN_MIN_TERM_WEEKS", terms.MinTermWeeks),
				MaxTermWeeks:          getEnvInt("LOAN_MAX_TERM_WEEKS", terms.MaxTermWeeks),
				DefaultTermWeeks:      getEnvInt("LOAN_DEFAULT_TERM_WEEKS", terms.DefaultTermWeeks),
				DefaultTermMonths:     getEnvInt("LOAN_DEFAULT_TERM_MONTHS", terms.DefaultTermMonths),
				LatePenaltyRatePerDay: getEnvDecimal("LOAN_LATE_PENALTY_RATE", terms.LatePenaltyRatePerDay),
			},
			CashAlertThreshold: getEnvAmount("CASH_ALERT_THRESHOLD", decimal.NewFromInt(1000)),
			BusinessTimezone:   getEnv("BUSINESS_TIMEZONE", "Asia/Manila"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.DB.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q must be %q or %q", c.StorageDriver, StorageMemory, StoragePostgres))
	}
	if c.DB.TxTimeout <= 0 {
		errs = append(errs, errors.New("TX_TIMEOUT must be positive"))
	}
	if err := c.Ledger.Terms.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger.CashAlertThreshold.IsNegative() {
		errs = append(errs, errors.New("CASH_ALERT_THRESHOLD must not be negative"))
	}
	if _, err := time.LoadLocation(c.Ledger.BusinessTimezone); err != nil {
		errs = append(errs, fmt.Errorf("BUSINESS_TIMEZONE: %w", err))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.OutboxBatch <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvAmount reads a currency amount. Thousands separators are accepted;
// sub-cent values fall back like any other malformed input.
func getEnvAmount(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := money.Parse(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
