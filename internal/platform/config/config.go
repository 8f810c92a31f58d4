package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	QuorumImage         int
	QuorumAudio         int
	QuorumTranscription int
	MaxVotesPerUser     int

	LeaseTTLValidation    time.Duration
	LeaseTTLTranscription time.Duration
	LeaseTTLResolution    time.Duration
	LeaseBatchSize        int

	CompensationAudioMinor         int64
	CompensationImageMinor         int64
	CompensationTranscriptionMinor int64
	MinPayoutMinor                 int64

	RecheckRounds int
	RecheckWait   time.Duration

	PayHubBaseURL string
	PayHubToken   string
	PayHubTimeout time.Duration

	EnableLeaseExpirer    bool
	EnableOutboxRelay     bool
	EnableRecheckConsumer bool
	EnableAccrualJob      bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "chorus"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		QuorumImage:         envInt("CONSENSUS_QUORUM_IMAGE", 3),
		QuorumAudio:         envInt("CONSENSUS_QUORUM_AUDIO", 3),
		QuorumTranscription: envInt("CONSENSUS_QUORUM_TRANSCRIPTION", 2),
		MaxVotesPerUser:     envInt("CONSENSUS_MAX_VOTES_PER_USER", 0),

		LeaseTTLValidation:    envDuration("LEASE_TTL_VALIDATION", 30*time.Minute),
		LeaseTTLTranscription: envDuration("LEASE_TTL_TRANSCRIPTION", 60*time.Minute),
		LeaseTTLResolution:    envDuration("LEASE_TTL_RESOLUTION", 30*time.Minute),
		LeaseBatchSize:        envInt("LEASE_BATCH_SIZE", 10),

		CompensationAudioMinor:         envInt64("COMPENSATION_AUDIO_MINOR", 50),
		CompensationImageMinor:         envInt64("COMPENSATION_IMAGE_MINOR", 20),
		CompensationTranscriptionMinor: envInt64("COMPENSATION_TRANSCRIPTION_MINOR", 100),
		MinPayoutMinor:                 envInt64("MIN_PAYOUT_MINOR", 100000),

		RecheckRounds: envInt("SETTLEMENT_RECHECK_ROUNDS", 6),
		RecheckWait:   envDuration("SETTLEMENT_RECHECK_WAIT", 10*time.Second),

		PayHubBaseURL: os.Getenv("PAYHUB_BASE_URL"),
		PayHubToken:   os.Getenv("PAYHUB_TOKEN"),
		PayHubTimeout: envDuration("PAYHUB_TIMEOUT", 15*time.Second),

		EnableLeaseExpirer:    envBool("ENABLE_LEASE_EXPIRER", true),
		EnableOutboxRelay:     envBool("ENABLE_OUTBOX_RELAY", true),
		EnableRecheckConsumer: envBool("ENABLE_RECHECK_CONSUMER", true),
		EnableAccrualJob:      envBool("ENABLE_ACCRUAL_JOB", true),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envInt64(name string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
