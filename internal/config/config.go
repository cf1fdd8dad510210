package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogLevel string

	DBDriver string
	DBDSN    string

	EnableLocalAuth bool
	AuthSecret      string
	AdminUser       string
	AdminPassHash   string            // bcrypt
	Recruiters      map[string]string // username -> bcrypt hash

	CORSOrigins []string

	// Invitation window used when the recruiter does not pick one.
	InviteDefaultHours int
	// Questions drawn per favorite exam when composing a private paper.
	ComposeDefaultPerExam int

	SweepInterval time.Duration
	SweepBatch    int

	AMQPURL          string // empty: notifications are only logged
	AMQPQueue        string
	CandidateBaseURL string
}

// FromEnv loads .env (if present) and reads the process environment.
// The returned notice is non-empty when no .env file was found.
func FromEnv() (Config, string) {
	notice := ""
	if err := godotenv.Load(); err != nil {
		notice = "no .env file found, using process environment"
	}
	mode := Mode(envOr("MODE", string(ModeOffline)))
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		EnableLocalAuth: envBool("ENABLE_LOCAL_AUTH", true),
		AuthSecret:      envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		Recruiters:      pairsOr("RECRUITER_USERS"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:3010"),

		InviteDefaultHours:    envInt("INVITE_DEFAULT_HOURS", 72),
		ComposeDefaultPerExam: envInt("COMPOSE_DEFAULT_PER_EXAM", 10),

		SweepInterval: envDuration("SWEEP_INTERVAL", time.Minute),
		SweepBatch:    envInt("SWEEP_BATCH", 100),

		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPQueue:        envOr("AMQP_QUEUE", "exam_notifications"),
		CandidateBaseURL: strings.TrimSuffix(envOr("CANDIDATE_BASE_URL", "http://localhost:3010"), "/"),
	}, notice
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(level string) *logrus.Logger {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	return &logrus.Logger{
		Out:       os.Stderr,
		Formatter: &logrus.TextFormatter{FullTimestamp: true},
		Hooks:     make(logrus.LevelHooks),
		Level:     lvl,
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pairsOr parses "user:hash,user2:hash2". Malformed entries are skipped.
func pairsOr(k string) map[string]string {
	out := map[string]string{}
	for _, p := range csvOr(k, "") {
		user, hash, ok := strings.Cut(p, ":")
		if !ok || strings.TrimSpace(user) == "" || hash == "" {
			continue
		}
		out[strings.TrimSpace(user)] = strings.TrimSpace(hash)
	}
	return out
}
