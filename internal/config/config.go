// Package config handles loading and parsing application configuration.
// It supports two sources for the config file path (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. The --config flag of the students-web command
//
// A .env file in the working directory, if present, is loaded into the
// process environment first so its values can override the YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	HTTPServer `yaml:"http_server"`
	Storage    Storage `yaml:"storage"`
	Upload     Upload  `yaml:"upload"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`
	// Base path the student routes are mounted under.
	RoutePrefix string `yaml:"route_prefix" env:"HTTP_ROUTE_PREFIX" env-default:"/student"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	// Driver is "mongo" or "sqlite".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongo"`

	Mongo struct {
		URI        string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
		Database   string `yaml:"database" env:"MONGO_DB" env-default:"students"`
		Collection string `yaml:"collection" env:"MONGO_COLLECTION" env-default:"students"`
	} `yaml:"mongo"`

	// SQLitePath is the filesystem path to the SQLite .db file.
	SQLitePath string `yaml:"sqlite_path" env:"STORAGE_PATH" env-default:"storage/students.db"`
}

// Upload configures where accepted images are written.
type Upload struct {
	// Driver is "disk" or "s3".
	Driver string `yaml:"driver" env:"UPLOAD_DRIVER" env-default:"disk"`
	// Dir is the public directory images are written to by the disk driver.
	Dir         string   `yaml:"dir" env:"UPLOAD_DIR" env-default:"./public/images"`
	MaxFileSize int64    `yaml:"max_file_size" env:"UPLOAD_MAX_FILE_SIZE" env-default:"5242880"`
	Allowed     []string `yaml:"allowed_types" env:"UPLOAD_ALLOWED_TYPES" env-default:"image/jpeg,image/png"`

	S3 struct {
		Bucket    string `yaml:"bucket" env:"UPLOAD_S3_BUCKET"`
		Prefix    string `yaml:"prefix" env:"UPLOAD_S3_PREFIX" env-default:"images/"`
		Region    string `yaml:"region" env:"UPLOAD_S3_REGION" env-default:"us-east-1"`
		Endpoint  string `yaml:"endpoint" env:"UPLOAD_S3_ENDPOINT"`
		AccessKey string `yaml:"access_key" env:"UPLOAD_S3_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"UPLOAD_S3_SECRET_KEY"`
	} `yaml:"s3"`
}

// Load reads the config file at path (falling back to CONFIG_PATH) and
// applies environment overrides.
func Load(path string) (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	if env := os.Getenv("CONFIG_PATH"); env != "" {
		path = env
	}
	if path == "" {
		return nil, fmt.Errorf("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects driver names and limits the rest of the app cannot use.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mongo", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Upload.Driver {
	case "disk":
	case "s3":
		if c.Upload.S3.Bucket == "" {
			return fmt.Errorf("config: upload.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown upload driver %q", c.Upload.Driver)
	}

	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("config: upload.max_file_size must be positive")
	}
	return nil
}
