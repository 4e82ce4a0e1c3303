package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	App   string
	Debug bool

	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Diary struct {
		MaxContentLength int
	}
	Auth struct {
		Password        string
		JWTSecret       string
		TokenTTLMinutes int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Backup struct {
		IntervalMinutes int
		Retain          int
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("DIARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app", "./cmd/server")
	v.SetDefault("debug", false)
	v.SetDefault("server.addr", "127.0.0.1:5000")
	v.SetDefault("database.path", "data/diary.db")
	v.SetDefault("diary.maxcontentlength", 10000)
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 720)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "diary-backups")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("backup.intervalminutes", 0)
	v.SetDefault("backup.retain", 0)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks rules that span several settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server addr is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if c.Diary.MaxContentLength <= 0 {
		return errors.New("diary max content length must be positive")
	}
	if strings.TrimSpace(c.Auth.Password) != "" && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required when auth password is set")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return errors.New("auth token ttl must be positive")
	}
	if c.Backup.IntervalMinutes < 0 || c.Backup.Retain < 0 {
		return errors.New("backup interval and retain cannot be negative")
	}
	if c.Backup.IntervalMinutes > 0 && strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage bucket is required for scheduled backups")
	}
	return nil
}

// AuthEnabled reports whether the diary is locked behind an owner password.
func (c Config) AuthEnabled() bool {
	return strings.TrimSpace(c.Auth.Password) != ""
}

// BackupsEnabled reports whether snapshots can be written to object storage.
func (c Config) BackupsEnabled() bool {
	return strings.TrimSpace(c.Storage.Bucket) != ""
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
