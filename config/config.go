package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Push       PushConfig       `yaml:"push"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	GinMode        string   `yaml:"gin_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // postgres or sqlite
	URL          string `yaml:"url"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type JWTConfig struct {
	Secret      string `yaml:"-"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	Folder    string `yaml:"folder"`
}

// Enabled reports whether all Cloudinary credentials are present.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type UploadsConfig struct {
	Dir          string `yaml:"dir"`
	PublicPath   string `yaml:"public_path"`
	MaxBytes     int64  `yaml:"max_bytes"`
	MaxDimension int    `yaml:"max_dimension"`
}

type LifecycleConfig struct {
	EnforcePhotoCounts bool    `yaml:"enforce_photo_counts"`
	MinRadiusMeters    float64 `yaml:"min_radius_meters"`
	MaxRadiusMeters    float64 `yaml:"max_radius_meters"`
	// MaxAccuracyMeters rejects check-ins whose reported GPS accuracy is worse
	// than this value. Zero disables the check.
	MaxAccuracyMeters float64 `yaml:"max_accuracy_meters"`
}

type JobsConfig struct {
	StaleCheckInSchedule   string `yaml:"stale_checkin_schedule"`
	StaleCheckInAfterHours int    `yaml:"stale_checkin_after_hours"`
}

type PushConfig struct {
	FirebaseCredentialsFile string `yaml:"firebase_credentials_file"`
}

// Default returns the configuration used when neither a file nor the
// environment override a setting.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			GinMode:        "debug",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8081"},
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxIdleConns: 10,
			MaxOpenConns: 100,
		},
		JWT: JWTConfig{
			ExpiryHours: 24,
		},
		Cloudinary: CloudinaryConfig{
			Folder: "submissions",
		},
		Uploads: UploadsConfig{
			Dir:          "uploads",
			PublicPath:   "/uploads",
			MaxBytes:     10 << 20,
			MaxDimension: 1920,
		},
		Lifecycle: LifecycleConfig{
			MinRadiusMeters: 10,
			MaxRadiusMeters: 10000,
		},
		Jobs: JobsConfig{
			StaleCheckInSchedule:   "0 */30 * * * *",
			StaleCheckInAfterHours: 8,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and finally the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.GinMode = getEnv("GIN_MODE", c.Server.GinMode)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.URL = getEnv("DB_URL", c.Database.URL)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)

	c.JWT.Secret = getEnv("JWT_SECRET", c.JWT.Secret)
	c.JWT.ExpiryHours = getEnvAsInt("JWT_EXPIRY_HOURS", c.JWT.ExpiryHours)

	c.Cloudinary.CloudName = getEnv("CLOUDINARY_CLOUD_NAME", c.Cloudinary.CloudName)
	c.Cloudinary.APIKey = getEnv("CLOUDINARY_API_KEY", c.Cloudinary.APIKey)
	c.Cloudinary.APISecret = getEnv("CLOUDINARY_API_SECRET", c.Cloudinary.APISecret)
	c.Cloudinary.Folder = getEnv("CLOUDINARY_FOLDER", c.Cloudinary.Folder)

	c.Uploads.Dir = getEnv("UPLOADS_DIR", c.Uploads.Dir)
	c.Uploads.PublicPath = getEnv("UPLOADS_PUBLIC_PATH", c.Uploads.PublicPath)
	c.Uploads.MaxBytes = int64(getEnvAsInt("UPLOADS_MAX_BYTES", int(c.Uploads.MaxBytes)))
	c.Uploads.MaxDimension = getEnvAsInt("UPLOADS_MAX_DIMENSION", c.Uploads.MaxDimension)

	c.Lifecycle.EnforcePhotoCounts = getEnvAsBool("LIFECYCLE_ENFORCE_PHOTO_COUNTS", c.Lifecycle.EnforcePhotoCounts)
	c.Lifecycle.MinRadiusMeters = getEnvAsFloat("LIFECYCLE_MIN_RADIUS_METERS", c.Lifecycle.MinRadiusMeters)
	c.Lifecycle.MaxRadiusMeters = getEnvAsFloat("LIFECYCLE_MAX_RADIUS_METERS", c.Lifecycle.MaxRadiusMeters)
	c.Lifecycle.MaxAccuracyMeters = getEnvAsFloat("LIFECYCLE_MAX_ACCURACY_METERS", c.Lifecycle.MaxAccuracyMeters)

	c.Jobs.StaleCheckInSchedule = getEnv("JOBS_STALE_CHECKIN_SCHEDULE", c.Jobs.StaleCheckInSchedule)
	c.Jobs.StaleCheckInAfterHours = getEnvAsInt("JOBS_STALE_CHECKIN_AFTER_HOURS", c.Jobs.StaleCheckInAfterHours)

	c.Push.FirebaseCredentialsFile = getEnv("FIREBASE_CREDENTIALS_FILE", c.Push.FirebaseCredentialsFile)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver))
	}
	if c.Database.URL == "" {
		problems = append(problems, "DB_URL is required")
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Lifecycle.MinRadiusMeters <= 0 || c.Lifecycle.MinRadiusMeters > c.Lifecycle.MaxRadiusMeters {
		problems = append(problems, "geofence radius bounds are invalid")
	}
	if c.Lifecycle.MaxAccuracyMeters < 0 {
		problems = append(problems, "max accuracy must not be negative")
	}
	if c.Uploads.MaxBytes <= 0 {
		problems = append(problems, "upload size limit must be positive")
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
