package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// EnvPrefix namespaces environment overrides, e.g. EASYTRIP_POSTGRES_HOST.
const EnvPrefix = "EASYTRIP"

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort         string        `mapstructure:"HTTPPort"`
		Timeout          time.Duration `mapstructure:"HTTPTimeout"`
		ShutdownTimeout  time.Duration `mapstructure:"shutdownTimeout"`
		AllowedOrigins   []string      `mapstructure:"allowedOrigins"`
		MaxUploadBytes   int64         `mapstructure:"maxUploadBytes"`
		ReviewsPerMinute int           `mapstructure:"reviewsPerMinute"`
	} `mapstructure:"server"`
	Metrics struct {
		Enabled     bool   `mapstructure:"enabled"`
		Port        string `mapstructure:"port"`
		ServiceName string `mapstructure:"serviceName"`
	} `mapstructure:"metrics"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
			MaxConns          int32  `mapstructure:"maxConns"`
		} `mapstructure:"postgres"`
		Redis struct {
			Enabled  bool   `mapstructure:"enabled"`
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
		RabbitMQ struct {
			Enabled bool   `mapstructure:"enabled"`
			URL     string `mapstructure:"url"`
			Queue   string `mapstructure:"queue"`
		} `mapstructure:"rabbitmq"`
	} `mapstructure:"repositories"`
	Images ImagesConfig `mapstructure:"images"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cache  struct {
		SnapshotTTL    time.Duration `mapstructure:"snapshotTTL"`
		ResponseTTL    time.Duration `mapstructure:"responseTTL"`
		ResponsePrefix string        `mapstructure:"responsePrefix"`
	} `mapstructure:"cache"`
	Client struct {
		BaseURL string        `mapstructure:"baseURL"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"client"`
}

// ImagesConfig selects and configures the image host.
type ImagesConfig struct {
	// Provider is one of cloudinary, s3 or disabled.
	Provider   string `mapstructure:"provider"`
	Folder     string `mapstructure:"folder"`
	TempDir    string `mapstructure:"tempDir"`
	Cloudinary struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"cloudinary"`
	S3 struct {
		Endpoint        string `mapstructure:"endpoint"`
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		AccessKeyID     string `mapstructure:"accessKeyID"`
		SecretAccessKey string `mapstructure:"secretAccessKey"`
		PublicBaseURL   string `mapstructure:"publicBaseURL"`
	} `mapstructure:"s3"`
}

// AuthConfig configures Firebase ID-token verification.
type AuthConfig struct {
	FirebaseProjectID string        `mapstructure:"firebaseProjectID"`
	CertsURL          string        `mapstructure:"certsURL"`
	CertsTTL          time.Duration `mapstructure:"certsTTL"`
	// Stub accepts any bearer token and treats every caller as admin.
	Stub        bool     `mapstructure:"stub"`
	AdminEmails []string `mapstructure:"adminEmails"`
	AdminUIDs   []string `mapstructure:"adminUIDs"`
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Mode, "production")
}

// StubAuth reports whether requests are authenticated with the permissive stub.
func (c Config) StubAuth() bool {
	return c.Auth.Stub && !c.IsProduction()
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	if c.IsProduction() && c.Auth.Stub {
		return fmt.Errorf("auth.stub must be disabled in production")
	}
	if !c.StubAuth() && c.Auth.FirebaseProjectID == "" {
		return fmt.Errorf("auth.firebaseProjectID is required when stub auth is off")
	}
	switch strings.ToLower(c.Images.Provider) {
	case "", "disabled", "cloudinary", "s3":
	default:
		return fmt.Errorf("unknown images.provider %q", c.Images.Provider)
	}
	return nil
}
