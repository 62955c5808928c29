package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	AllowOrigins           string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	RealtimeVerifyJoin     bool
	JWTSecret              string
	JWTTTL                 time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadsDir             string
	UploadMaxSizeMB        int
	UploadMaxFiles         int
	RequestMinLeadTime     time.Duration
	StrictTransitions      bool
	ProfileCacheTTL        time.Duration
	RateLimitMax           int
	RateLimitWindow        time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether Cloudinary credentials are present.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("NOTEHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "NoteHub API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.allow_origins", "*")
	v.SetDefault("realtime.channel", "notehub")
	v.SetDefault("realtime.verify_join", true)
	v.SetDefault("jwt.ttl", "168h")
	v.SetDefault("cloudinary.folder", "notehub/uploads")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_size_mb", 10)
	v.SetDefault("uploads.max_files", 5)
	v.SetDefault("requests.min_lead_time", "1h")
	v.SetDefault("lifecycle.strict_transitions", false)
	v.SetDefault("profile.cache_ttl", "5m")
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"jwt.ttl", "requests.min_lead_time", "profile.cache_ttl", "rate_limit.window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		AllowOrigins:           v.GetString("app.allow_origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		RealtimeVerifyJoin:     v.GetBool("realtime.verify_join"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTTL:                 durations["jwt.ttl"],
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadsDir:             v.GetString("uploads.dir"),
		UploadMaxSizeMB:        v.GetInt("uploads.max_size_mb"),
		UploadMaxFiles:         v.GetInt("uploads.max_files"),
		RequestMinLeadTime:     durations["requests.min_lead_time"],
		StrictTransitions:      v.GetBool("lifecycle.strict_transitions"),
		ProfileCacheTTL:        durations["profile.cache_ttl"],
		RateLimitMax:           v.GetInt("rate_limit.max"),
		RateLimitWindow:        durations["rate_limit.window"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.UploadMaxFiles <= 0 {
		cfg.UploadMaxFiles = 5
	}

	return cfg, nil
}
