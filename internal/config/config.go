package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the name of the JSON config file looked up in the config directory.
const FileName = "posecore.cfg.json"

// PoseConfig holds frame building settings
type PoseConfig struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold" mapstructure:"confidenceThreshold"`
	MinFrames           int     `json:"minFrames" mapstructure:"minFrames"`
}

// CaptureConfig holds live capture worker settings
type CaptureConfig struct {
	BufferSize       int    `json:"bufferSize" mapstructure:"bufferSize"`
	IncompletePolicy string `json:"incompletePolicy" mapstructure:"incompletePolicy"`
}

// ScoringConfig holds error scorer settings
type ScoringConfig struct {
	MaxErrorScale float64            `json:"maxErrorScale" mapstructure:"maxErrorScale"`
	ActionScales  map[string]float64 `json:"actionScales" mapstructure:"actionScales"`
}

// ClassifyConfig holds classifier thresholds
type ClassifyConfig struct {
	MinConfidence         float64 `json:"minConfidence" mapstructure:"minConfidence"`
	MinLandmarkConfidence float64 `json:"minLandmarkConfidence" mapstructure:"minLandmarkConfidence"`
	MinMotion             float64 `json:"minMotion" mapstructure:"minMotion"`
}

// ReferencesConfig holds ideal sequence file settings
type ReferencesConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	ReferencesDir  string `json:"referencesDir" mapstructure:"referencesDir"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`

	// FallbackPath receives a dump of the in-memory SQLite fallback on close.
	FallbackPath string `json:"fallbackPath" mapstructure:"fallbackPath"`
}

// APIConfig holds coaching server settings
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type     string       `json:"type" mapstructure:"type"`
	Memory   MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Postgres DBConfig     `json:"postgres" mapstructure:"postgres"`
	API      APIConfig    `json:"api" mapstructure:"api"`
}

// UploadConfig holds session export upload settings
type UploadConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// GraylogConfig holds GELF output settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./poselogs")

	viper.SetDefault("pose.confidenceThreshold", 0.3)
	viper.SetDefault("pose.minFrames", 2)

	viper.SetDefault("capture.bufferSize", 1024)
	viper.SetDefault("capture.incompletePolicy", "drop")

	viper.SetDefault("scoring.maxErrorScale", 1.0)
	viper.SetDefault("scoring.actionScales", map[string]float64{})

	viper.SetDefault("classify.minConfidence", 0.5)
	viper.SetDefault("classify.minLandmarkConfidence", 0.3)
	viper.SetDefault("classify.minMotion", 0.05)

	viper.SetDefault("references.dir", "./references")
	viper.SetDefault("references.compress", true)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./sessions")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./posecore.db")

	viper.SetDefault("api.serverUrl", "ws://localhost:5000/ws")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "posecore")
	viper.SetDefault("db.sslMode", "disable")
	viper.SetDefault("db.fallbackPath", "./posecore_fallback.db")

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.serverUrl", "http://localhost:5000")
	viper.SetDefault("upload.apiKey", "")

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "posecore")
	viper.SetDefault("influx.bucket", "posecore_sessions")
	viper.SetDefault("influx.backupDir", "./poselogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "posecore")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetPoseConfig() PoseConfig {
	return PoseConfig{
		ConfidenceThreshold: viper.GetFloat64("pose.confidenceThreshold"),
		MinFrames:           viper.GetInt("pose.minFrames"),
	}
}

func GetCaptureConfig() CaptureConfig {
	return CaptureConfig{
		BufferSize:       viper.GetInt("capture.bufferSize"),
		IncompletePolicy: viper.GetString("capture.incompletePolicy"),
	}
}

func GetScoringConfig() ScoringConfig {
	cfg := ScoringConfig{
		MaxErrorScale: viper.GetFloat64("scoring.maxErrorScale"),
		ActionScales:  map[string]float64{},
	}
	// viper lowercases map keys; action labels are lowercase already
	_ = viper.UnmarshalKey("scoring.actionScales", &cfg.ActionScales)
	return cfg
}

func GetClassifyConfig() ClassifyConfig {
	return ClassifyConfig{
		MinConfidence:         viper.GetFloat64("classify.minConfidence"),
		MinLandmarkConfidence: viper.GetFloat64("classify.minLandmarkConfidence"),
		MinMotion:             viper.GetFloat64("classify.minMotion"),
	}
}

func GetReferencesConfig() ReferencesConfig {
	return ReferencesConfig{
		Dir:      viper.GetString("references.dir"),
		Compress: viper.GetBool("references.compress"),
	}
}

func GetDBConfig() DBConfig {
	return DBConfig{
		Host:         viper.GetString("db.host"),
		Port:         viper.GetString("db.port"),
		Username:     viper.GetString("db.username"),
		Password:     viper.GetString("db.password"),
		Database:     viper.GetString("db.database"),
		SSLMode:      viper.GetString("db.sslMode"),
		FallbackPath: viper.GetString("db.fallbackPath"),
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			ReferencesDir:  viper.GetString("references.dir"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Postgres: GetDBConfig(),
		API: APIConfig{
			ServerURL: viper.GetString("api.serverUrl"),
			APIKey:    viper.GetString("api.apiKey"),
		},
	}
}

func GetUploadConfig() UploadConfig {
	return UploadConfig{
		Enabled:   viper.GetBool("upload.enabled"),
		ServerURL: viper.GetString("upload.serverUrl"),
		APIKey:    viper.GetString("upload.apiKey"),
	}
}

func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
