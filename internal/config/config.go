// Package config loads the server configuration from defaults, an optional
// JSON file, environment variables and command-line flags, in that order of
// increasing priority, and validates the result.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	AssetBackendS3 = "s3"
	AssetBackendFS = "fs"
)

// Config holds runtime settings of the blog server.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`

	TokenSigningKey string        `env:"TOKEN_SIGNING_KEY" json:"token_signing_key" validate:"required,base64url"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" json:"token_ttl"`

	UploadMaxBytes int64  `env:"UPLOAD_MAX_BYTES" json:"upload_max_bytes" validate:"gt=0"`
	AssetFolder    string `env:"ASSET_FOLDER" json:"asset_folder" validate:"required,excludesall=/"`
	AssetBackend   string `env:"ASSET_BACKEND" json:"asset_backend" validate:"oneof=s3 fs"`
	AssetDir       string `env:"ASSET_DIR" json:"asset_dir"`
	AssetBaseURL   string `env:"ASSET_PUBLIC_BASE_URL" json:"asset_public_base_url" validate:"url"`

	S3Bucket       string `env:"S3_BUCKET" json:"s3_bucket"`
	S3Region       string `env:"S3_REGION" json:"s3_region"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT" json:"s3_base_endpoint"`
	S3AccessKey    string `env:"S3_ACCESS_KEY" json:"s3_access_key"`
	S3SecretKey    string `env:"S3_SECRET_KEY" json:"s3_secret_key"`
	S3PathStyle    bool   `env:"S3_PATH_STYLE" json:"s3_path_style"`

	ReaperChannelCapacity int           `env:"REAPER_CHANNEL_CAPACITY" json:"reaper_channel_capacity" validate:"gt=0"`
	ReaperFlushInterval   time.Duration `env:"REAPER_FLUSH_INTERVAL" json:"reaper_flush_interval" validate:"gt=0"`

	TrustedSubnet string `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`

	ConfigFile string `env:"CONFIG" json:"-"`
}

var defaultConfig = Config{
	RunAddr:               ":8080",
	LogLevel:              "info",
	DBConnectionTimeout:   10 * time.Second,
	MigrationsDir:         "cmd/blogshelf/migrations",
	TokenSigningKey:       "ZGV2ZWxvcG1lbnQtb25seS1ibG9nc2hlbGYta2V5LTAx",
	TokenTTL:              24 * time.Hour,
	UploadMaxBytes:        5 << 20,
	AssetFolder:           "blogs",
	AssetBackend:          AssetBackendFS,
	AssetDir:              "assets",
	AssetBaseURL:          "http://localhost:8080/assets",
	S3Region:              "us-east-1",
	ReaperChannelCapacity: 256,
	ReaperFlushInterval:   2 * time.Second,
}

// InitOption configures New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command-line flags. Tests use it so that the
// test binary's own flags are not consumed.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the configuration. Priority is CLI > ENV > JSON > defaults.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}

	var fromFlags Config
	if !options.disableFlagsParsing {
		parseFlags(&fromFlags)
	}

	configFile := fromEnv.ConfigFile
	if fromFlags.ConfigFile != "" {
		configFile = fromFlags.ConfigFile
	}
	if configFile != "" {
		fromJSON, err := loadJSON(configFile)
		if err != nil {
			return nil, err
		}
		applyOverrides(values, fromJSON)
	}

	applyOverrides(values, &fromEnv)
	applyOverrides(values, &fromFlags)
	values.ConfigFile = configFile

	if err := validate(values); err != nil {
		return nil, err
	}

	return values, nil
}

func parseFlags(values *Config) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flags.StringVar(&values.RunAddr, "a", "", "address and port to run server")
	flags.StringVar(&values.LogLevel, "l", "", "logger level")
	flags.StringVar(&values.DBFileName, "f", "", "JSON file name with database")
	flags.StringVar(&values.DatabaseDSN, "d", "", "a string with the database connection details")
	flags.StringVar(&values.MigrationsDir, "m", "", "directory with goose migrations")
	flags.StringVar(&values.AssetBackend, "asset-backend", "", "asset storage backend: s3 or fs")
	flags.StringVar(&values.AssetBaseURL, "asset-base-url", "", "public base URL of stored images")
	flags.StringVar(&values.TrustedSubnet, "t", "", "trusted subnet in CIDR notation")
	flags.StringVar(&values.ConfigFile, "c", "", "path to a JSON configuration file")
	_ = flags.Parse(os.Args[1:])
}

func loadJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	result := &Config{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	return result, nil
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

// applyOverrides copies every non-zero field of src over dst.
func applyOverrides(dst, src *Config) {
	if src.RunAddr != "" {
		dst.RunAddr = src.RunAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.DBFileName != "" {
		dst.DBFileName = src.DBFileName
	}
	if src.DatabaseDSN != "" {
		dst.DatabaseDSN = src.DatabaseDSN
	}
	if src.DBConnectionTimeout != 0 {
		dst.DBConnectionTimeout = src.DBConnectionTimeout
	}
	if src.MigrationsDir != "" {
		dst.MigrationsDir = src.MigrationsDir
	}
	if src.TokenSigningKey != "" {
		dst.TokenSigningKey = src.TokenSigningKey
	}
	if src.TokenTTL != 0 {
		dst.TokenTTL = src.TokenTTL
	}
	if src.UploadMaxBytes != 0 {
		dst.UploadMaxBytes = src.UploadMaxBytes
	}
	if src.AssetFolder != "" {
		dst.AssetFolder = src.AssetFolder
	}
	if src.AssetBackend != "" {
		dst.AssetBackend = src.AssetBackend
	}
	if src.AssetDir != "" {
		dst.AssetDir = src.AssetDir
	}
	if src.AssetBaseURL != "" {
		dst.AssetBaseURL = src.AssetBaseURL
	}
	if src.S3Bucket != "" {
		dst.S3Bucket = src.S3Bucket
	}
	if src.S3Region != "" {
		dst.S3Region = src.S3Region
	}
	if src.S3BaseEndpoint != "" {
		dst.S3BaseEndpoint = src.S3BaseEndpoint
	}
	if src.S3AccessKey != "" {
		dst.S3AccessKey = src.S3AccessKey
	}
	if src.S3SecretKey != "" {
		dst.S3SecretKey = src.S3SecretKey
	}
	if src.S3PathStyle {
		dst.S3PathStyle = true
	}
	if src.ReaperChannelCapacity != 0 {
		dst.ReaperChannelCapacity = src.ReaperChannelCapacity
	}
	if src.ReaperFlushInterval != 0 {
		dst.ReaperFlushInterval = src.ReaperFlushInterval
	}
	if src.TrustedSubnet != "" {
		dst.TrustedSubnet = src.TrustedSubnet
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func validate(values *Config) error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	if err := validate.Struct(values); err != nil {
		return err
	}

	if values.AssetBackend == AssetBackendS3 && values.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when ASSET_BACKEND is %q", AssetBackendS3)
	}

	return nil
}
