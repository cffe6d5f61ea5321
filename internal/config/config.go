package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Policy is the live-reloadable part of the configuration.
type Policy struct {
	MatchThreshold float64
	WeightMinKg    float64
	WeightMaxKg    float64
	WarningKg      float64
	OverweightKg   float64
}

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health server

	// DB
	Env      string // "dev" | "prod"
	DBDriver string // "sqlite" | "postgres"
	DBPath   string // sqlite file
	DBDSN    string // postgres connection string

	// DevAdminTag seeds an administrator in dev mode.
	DevAdminTag string

	// Bus. An empty broker runs the in-process bus.
	MQTTBroker        string
	MQTTUsername      string
	MQTTPassword      string
	MQTTClientID      string
	TopicTagPresented string
	TopicDoorResponse string
	TopicWeight       string
	DoorOpenPayload   string
	DoorDenyPayload   string

	// Devices
	ReaderDevice   string // line-oriented tag stream; empty = simulated reader
	ReaderLockWait time.Duration
	ReaderTimeout  time.Duration
	CameraURL      string // face-embedding service; empty = static dev camera
	CameraAttempts int
	CameraDelay    time.Duration
	EmbeddingDim   int
	EmbeddingWidth string // "float64" | "float32"

	Policy Policy

	// Weight retention
	WeightRetentionDays int // 0 = keep forever
	PruneIntervalHours  int

	// Admin tokens; empty secret disables auth on admin routes.
	JWTSecret string
	JWTTTL    time.Duration

	// Per-IP limit on the verification endpoints.
	VerifyRatePerMinute int
	VerifyBurst         int

	// Path of the TOML file the config was loaded from, if any.
	File string
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Env:      "dev",
		DBDriver: "sqlite",
		DBPath:   "./data/smartport.db",

		MQTTClientID:      "smartport",
		TopicTagPresented: "door/tag-presented",
		TopicDoorResponse: "door/response",
		TopicWeight:       "scale/weight",
		DoorOpenPayload:   "ABRIR",
		DoorDenyPayload:   "DENEGAR",

		ReaderLockWait: 5 * time.Second,
		ReaderTimeout:  15 * time.Second,
		CameraAttempts: 30,
		CameraDelay:    300 * time.Millisecond,
		EmbeddingDim:   128,
		EmbeddingWidth: "float64",

		Policy: Policy{
			MatchThreshold: 60,
			WeightMinKg:    0.100,
			WeightMaxKg:    50.0,
			WarningKg:      20,
			OverweightKg:   23,
		},

		WeightRetentionDays: 90,
		PruneIntervalHours:  6,

		JWTTTL: 8 * time.Hour,

		VerifyRatePerMinute: 30,
		VerifyBurst:         5,
	}
}

// FromEnv loads defaults, then the TOML file named by SMARTPORT_CONFIG (if
// set), then SMARTPORT_* environment overrides.
func FromEnv() (Config, error) {
	return Load(os.Getenv("SMARTPORT_CONFIG"))
}

// Load is FromEnv with an explicit file path. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
		cfg.File = path
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DBDriver == "postgres" && strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("config: postgres driver requires SMARTPORT_DB_DSN")
	}
	if c.Policy.MatchThreshold < 0 || c.Policy.MatchThreshold > 100 {
		return fmt.Errorf("config: match threshold %v outside 0-100", c.Policy.MatchThreshold)
	}
	if c.Policy.WeightMinKg > c.Policy.WeightMaxKg {
		return fmt.Errorf("config: weight band min %v > max %v", c.Policy.WeightMinKg, c.Policy.WeightMaxKg)
	}
	if c.EmbeddingDim < 0 {
		return fmt.Errorf("config: negative embedding dimension")
	}
	return nil
}

// ── TOML file ────────────────────────────────────────────────────────────────

type fileConfig struct {
	Server struct {
		HTTPAddr string `toml:"http_addr"`
		GRPCAddr string `toml:"grpc_addr"`
		Env      string `toml:"env"`
	} `toml:"server"`

	Database struct {
		Driver      string `toml:"driver"`
		Path        string `toml:"path"`
		DSN         string `toml:"dsn"`
		DevAdminTag string `toml:"dev_admin_tag"`
	} `toml:"database"`

	Bus struct {
		Broker            string `toml:"broker"`
		Username          string `toml:"username"`
		Password          string `toml:"password"`
		ClientID          string `toml:"client_id"`
		TopicTagPresented string `toml:"topic_tag_presented"`
		TopicDoorResponse string `toml:"topic_door_response"`
		TopicWeight       string `toml:"topic_weight"`
		OpenPayload       string `toml:"open_payload"`
		DenyPayload       string `toml:"deny_payload"`
	} `toml:"bus"`

	Devices struct {
		ReaderDevice   string `toml:"reader_device"`
		ReaderLockWait string `toml:"reader_lock_wait"`
		ReaderTimeout  string `toml:"reader_timeout"`
		CameraURL      string `toml:"camera_url"`
		CameraAttempts int    `toml:"camera_attempts"`
		CameraDelay    string `toml:"camera_delay"`
		EmbeddingDim   int    `toml:"embedding_dim"`
		EmbeddingWidth string `toml:"embedding_width"`
	} `toml:"devices"`

	Policy struct {
		MatchThreshold *float64 `toml:"match_threshold"`
		WeightMinKg    *float64 `toml:"weight_min_kg"`
		WeightMaxKg    *float64 `toml:"weight_max_kg"`
		WarningKg      *float64 `toml:"warning_kg"`
		OverweightKg   *float64 `toml:"overweight_kg"`
	} `toml:"policy"`

	Weights struct {
		RetentionDays      *int `toml:"retention_days"`
		PruneIntervalHours int  `toml:"prune_interval_hours"`
	} `toml:"weights"`

	Auth struct {
		JWTSecret       string `toml:"jwt_secret"`
		JWTTTL          string `toml:"jwt_ttl"`
		VerifyPerMinute int    `toml:"verify_per_minute"`
		VerifyBurst     int    `toml:"verify_burst"`
	} `toml:"auth"`
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return fmt.Errorf("config file %s: unknown keys %v", path, undec)
	}

	setString(&cfg.HTTPAddr, fc.Server.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.Server.GRPCAddr)
	setString(&cfg.Env, fc.Server.Env)

	setString(&cfg.DBDriver, fc.Database.Driver)
	setString(&cfg.DBPath, fc.Database.Path)
	setString(&cfg.DBDSN, fc.Database.DSN)
	setString(&cfg.DevAdminTag, fc.Database.DevAdminTag)

	setString(&cfg.MQTTBroker, fc.Bus.Broker)
	setString(&cfg.MQTTUsername, fc.Bus.Username)
	setString(&cfg.MQTTPassword, fc.Bus.Password)
	setString(&cfg.MQTTClientID, fc.Bus.ClientID)
	setString(&cfg.TopicTagPresented, fc.Bus.TopicTagPresented)
	setString(&cfg.TopicDoorResponse, fc.Bus.TopicDoorResponse)
	setString(&cfg.TopicWeight, fc.Bus.TopicWeight)
	setString(&cfg.DoorOpenPayload, fc.Bus.OpenPayload)
	setString(&cfg.DoorDenyPayload, fc.Bus.DenyPayload)

	setString(&cfg.ReaderDevice, fc.Devices.ReaderDevice)
	setString(&cfg.CameraURL, fc.Devices.CameraURL)
	setString(&cfg.EmbeddingWidth, fc.Devices.EmbeddingWidth)
	setInt(&cfg.CameraAttempts, fc.Devices.CameraAttempts)
	setInt(&cfg.EmbeddingDim, fc.Devices.EmbeddingDim)
	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&cfg.ReaderLockWait, fc.Devices.ReaderLockWait, "devices.reader_lock_wait"},
		{&cfg.ReaderTimeout, fc.Devices.ReaderTimeout, "devices.reader_timeout"},
		{&cfg.CameraDelay, fc.Devices.CameraDelay, "devices.camera_delay"},
		{&cfg.JWTTTL, fc.Auth.JWTTTL, "auth.jwt_ttl"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}

	setFloatPtr(&cfg.Policy.MatchThreshold, fc.Policy.MatchThreshold)
	setFloatPtr(&cfg.Policy.WeightMinKg, fc.Policy.WeightMinKg)
	setFloatPtr(&cfg.Policy.WeightMaxKg, fc.Policy.WeightMaxKg)
	setFloatPtr(&cfg.Policy.WarningKg, fc.Policy.WarningKg)
	setFloatPtr(&cfg.Policy.OverweightKg, fc.Policy.OverweightKg)

	if fc.Weights.RetentionDays != nil {
		cfg.WeightRetentionDays = *fc.Weights.RetentionDays
	}
	setInt(&cfg.PruneIntervalHours, fc.Weights.PruneIntervalHours)

	setString(&cfg.JWTSecret, fc.Auth.JWTSecret)
	setInt(&cfg.VerifyRatePerMinute, fc.Auth.VerifyPerMinute)
	setInt(&cfg.VerifyBurst, fc.Auth.VerifyBurst)
	return nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloatPtr(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ── Environment ──────────────────────────────────────────────────────────────

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("SMARTPORT_HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = getenvDefault("SMARTPORT_GRPC_ADDR", cfg.GRPCAddr)

	cfg.Env = strings.ToLower(getenvDefault("SMARTPORT_ENV", cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}

	cfg.DBDriver = strings.ToLower(getenvDefault("SMARTPORT_DB_DRIVER", cfg.DBDriver))
	cfg.DBPath = getenvDefault("SMARTPORT_DB_PATH", cfg.DBPath)
	cfg.DBDSN = getenvDefault("SMARTPORT_DB_DSN", cfg.DBDSN)
	cfg.DevAdminTag = getenvDefault("SMARTPORT_DEV_ADMIN_TAG", cfg.DevAdminTag)

	cfg.MQTTBroker = getenvDefault("SMARTPORT_MQTT_BROKER", cfg.MQTTBroker)
	cfg.MQTTUsername = getenvDefault("SMARTPORT_MQTT_USERNAME", cfg.MQTTUsername)
	cfg.MQTTPassword = getenvDefault("SMARTPORT_MQTT_PASSWORD", cfg.MQTTPassword)
	cfg.MQTTClientID = getenvDefault("SMARTPORT_MQTT_CLIENT_ID", cfg.MQTTClientID)
	cfg.TopicTagPresented = getenvDefault("SMARTPORT_TOPIC_TAG_PRESENTED", cfg.TopicTagPresented)
	cfg.TopicDoorResponse = getenvDefault("SMARTPORT_TOPIC_DOOR_RESPONSE", cfg.TopicDoorResponse)
	cfg.TopicWeight = getenvDefault("SMARTPORT_TOPIC_WEIGHT", cfg.TopicWeight)
	cfg.DoorOpenPayload = getenvDefault("SMARTPORT_DOOR_OPEN_PAYLOAD", cfg.DoorOpenPayload)
	cfg.DoorDenyPayload = getenvDefault("SMARTPORT_DOOR_DENY_PAYLOAD", cfg.DoorDenyPayload)

	cfg.ReaderDevice = getenvDefault("SMARTPORT_READER_DEVICE", cfg.ReaderDevice)
	cfg.ReaderLockWait = getenvDuration("SMARTPORT_READER_LOCK_WAIT", cfg.ReaderLockWait)
	cfg.ReaderTimeout = getenvDuration("SMARTPORT_READER_TIMEOUT", cfg.ReaderTimeout)
	cfg.CameraURL = getenvDefault("SMARTPORT_CAMERA_URL", cfg.CameraURL)
	cfg.CameraAttempts = getenvInt("SMARTPORT_CAMERA_ATTEMPTS", cfg.CameraAttempts)
	cfg.CameraDelay = getenvDuration("SMARTPORT_CAMERA_DELAY", cfg.CameraDelay)
	cfg.EmbeddingDim = getenvInt("SMARTPORT_EMBEDDING_DIM", cfg.EmbeddingDim)
	cfg.EmbeddingWidth = getenvDefault("SMARTPORT_EMBEDDING_WIDTH", cfg.EmbeddingWidth)

	cfg.Policy.MatchThreshold = getenvFloat("SMARTPORT_MATCH_THRESHOLD", cfg.Policy.MatchThreshold)
	cfg.Policy.WeightMinKg = getenvFloat("SMARTPORT_WEIGHT_MIN_KG", cfg.Policy.WeightMinKg)
	cfg.Policy.WeightMaxKg = getenvFloat("SMARTPORT_WEIGHT_MAX_KG", cfg.Policy.WeightMaxKg)
	cfg.Policy.WarningKg = getenvFloat("SMARTPORT_WEIGHT_WARNING_KG", cfg.Policy.WarningKg)
	cfg.Policy.OverweightKg = getenvFloat("SMARTPORT_WEIGHT_OVERWEIGHT_KG", cfg.Policy.OverweightKg)

	cfg.WeightRetentionDays = getenvInt("SMARTPORT_WEIGHT_RETENTION_DAYS", cfg.WeightRetentionDays)
	cfg.PruneIntervalHours = getenvInt("SMARTPORT_PRUNE_INTERVAL_HOURS", cfg.PruneIntervalHours)

	cfg.JWTSecret = getenvDefault("SMARTPORT_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTTTL = getenvDuration("SMARTPORT_JWT_TTL", cfg.JWTTTL)

	cfg.VerifyRatePerMinute = getenvInt("SMARTPORT_VERIFY_PER_MINUTE", cfg.VerifyRatePerMinute)
	cfg.VerifyBurst = getenvInt("SMARTPORT_VERIFY_BURST", cfg.VerifyBurst)
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return def
	}
	return f
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
