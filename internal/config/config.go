package config

import (
	"flag"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects how the orchestrator obtains samples.
type Mode string

const (
	ModeManual   Mode = "manual"    // alerts only via the manual trigger
	ModeOnDemand Mode = "on-demand" // single analysis per operator command
	ModePeriodic Mode = "periodic"  // auto-detect on a sampling interval
)

// ParseMode maps operator input to a Mode. Unknown input falls back to manual.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeManual:
		return ModeManual, true
	case ModeOnDemand:
		return ModeOnDemand, true
	case ModePeriodic:
		return ModePeriodic, true
	}
	return ModeManual, false
}

// e164 matches the international phone format, optionally with a leading plus.
var e164 = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidNumber reports whether s is usable as a contact or sender number.
func ValidNumber(s string) bool {
	return e164.MatchString(strings.TrimSpace(s))
}

// Session holds the per-session emergency settings consumed by the orchestrator.
type Session struct {
	Contact        string
	Sender         string
	Mode           Mode
	SampleInterval time.Duration
}

type Config struct {
	Port        string
	Env         string
	GeminiModel string
	SettleDelay time.Duration
	Session     Session
	Twilio      TwilioConfig
	Evidence    EvidenceConfig
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
}

type EvidenceConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	mode, _ := ParseMode(os.Getenv("DETECTION_MODE"))

	return &Config{
		Port:        *port,
		Env:         env,
		GeminiModel: firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.5-flash"),
		SettleDelay: durationMs("SETTLE_DELAY_MS", 30_000),
		Session: Session{
			Contact:        validOrEmpty(os.Getenv("PRIMARY_CONTACT")),
			Sender:         validOrEmpty(os.Getenv("TWILIO_FROM_NUMBER")),
			Mode:           mode,
			SampleInterval: durationMs("SAMPLE_INTERVAL_MS", 5_000),
		},
		Twilio: TwilioConfig{
			AccountSID: strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
			AuthToken:  strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		},
		Evidence: loadEvidenceConfig(),
	}, nil
}

func loadEvidenceConfig() EvidenceConfig {
	endpoint := strings.TrimSpace(os.Getenv("EVIDENCE_S3_ENDPOINT"))
	return EvidenceConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("EVIDENCE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("EVIDENCE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("EVIDENCE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("EVIDENCE_S3_BUCKET")), "safeguard-evidence"),
		UseSSL:    resolveUseSSL(),
	}
}

func resolveUseSSL() bool {
	raw := strings.TrimSpace(os.Getenv("EVIDENCE_S3_USE_SSL"))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return v
}

func durationMs(key string, fallback int64) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return time.Duration(fallback) * time.Millisecond
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Duration(fallback) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func validOrEmpty(s string) string {
	s = strings.TrimSpace(s)
	if !ValidNumber(s) {
		return ""
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
