package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Vision     VisionConfig     `yaml:"vision"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Worker     WorkerConfig     `yaml:"worker"`
	Kiosk      KioskConfig      `yaml:"kiosk"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
}

// AttendanceConfig holds the constants the matching and reporting core
// depends on. The reporting offset is fixed configuration, not
// auto-detected, so reports come out identical wherever they are
// generated.
type AttendanceConfig struct {
	MatchThreshold      float64 `yaml:"match_threshold"`
	CooldownMS          int     `yaml:"cooldown_ms"`
	ReportUTCOffsetMins int     `yaml:"report_utc_offset_mins"`
}

// Cooldown returns the minimum interval between punches for one
// employee.
func (a AttendanceConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownMS) * time.Millisecond
}

// ReportLocation returns the fixed reporting timezone.
func (a AttendanceConfig) ReportLocation() *time.Location {
	return time.FixedZone("report", a.ReportUTCOffsetMins*60)
}

type WorkerConfig struct {
	Count              int `yaml:"count"`
	MetricsPort        int `yaml:"metrics_port"`
	FrameRetentionMins int `yaml:"frame_retention_mins"`
}

// FrameRetention is how long punch frame snapshots queued under frames/
// stay in object storage before the sweep removes them.
func (w WorkerConfig) FrameRetention() time.Duration {
	return time.Duration(w.FrameRetentionMins) * time.Minute
}

type KioskConfig struct {
	ID             string `yaml:"id"`
	CameraDevice   string `yaml:"camera_device"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	FrameWidth     int    `yaml:"frame_width"`
	MetricsPort    int    `yaml:"metrics_port"`
}

func (k KioskConfig) PollInterval() time.Duration {
	return time.Duration(k.PollIntervalMS) * time.Millisecond
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Attendance.MatchThreshold == 0 {
		cfg.Attendance.MatchThreshold = 0.55
	}
	if cfg.Attendance.CooldownMS == 0 {
		cfg.Attendance.CooldownMS = 60000
	}
	if cfg.Attendance.ReportUTCOffsetMins == 0 {
		cfg.Attendance.ReportUTCOffsetMins = -180 // UTC-3
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 2
	}
	if cfg.Worker.MetricsPort == 0 {
		cfg.Worker.MetricsPort = 8082
	}
	if cfg.Worker.FrameRetentionMins == 0 {
		cfg.Worker.FrameRetentionMins = 60
	}
	if cfg.Kiosk.ID == "" {
		cfg.Kiosk.ID = "kiosk-1"
	}
	if cfg.Kiosk.CameraDevice == "" {
		cfg.Kiosk.CameraDevice = "/dev/video0"
	}
	if cfg.Kiosk.PollIntervalMS == 0 {
		cfg.Kiosk.PollIntervalMS = 1000
	}
	if cfg.Kiosk.FrameWidth == 0 {
		cfg.Kiosk.FrameWidth = 640
	}
	if cfg.Kiosk.MetricsPort == 0 {
		cfg.Kiosk.MetricsPort = 8083
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TC_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("TC_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("TC_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("TC_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("TC_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("TC_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("TC_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("TC_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("TC_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("TC_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("TC_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("TC_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("TC_KIOSK_ID"); v != "" {
		cfg.Kiosk.ID = v
	}
	if v := os.Getenv("TC_CAMERA_DEVICE"); v != "" {
		cfg.Kiosk.CameraDevice = v
	}
}
