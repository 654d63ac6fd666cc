// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Drive export constants. The synthetic root marker is the parent id the Drive
// listing assigns to top-level folders.
const (
	DefaultFolderMIME = "application/vnd.google-apps.folder"
	DefaultRootMarker = "root"
)

// DefaultFileTypes maps Drive MIME types to friendly file types. Unmapped MIME
// types resolve to "other".
var DefaultFileTypes = map[string]string{
	"application/vnd.google-apps.document":     "doc",
	"application/vnd.google-apps.spreadsheet":  "sheet",
	"application/vnd.google-apps.presentation": "slides",
	"application/vnd.google-apps.folder":       "folder",
	"application/pdf":                          "pdf",
	"image/jpeg":                               "image",
	"image/png":                                "image",
	"video/mp4":                                "video",
	"video/quicktime":                          "video",
	"application/zip":                          "archive",
}

// Config holds all configuration for the asset pipeline commands.
type Config struct {
	// Build: input/output
	InputJSON          string
	OutputCSV          string
	CheckpointPath     string
	Resume             bool
	CheckpointInterval int // Default: 500

	// Tree indexing
	FolderMIME string
	RootMarker string
	FileTypes  map[string]string

	// Tenant mapping (campaign folder name -> tenant id)
	TenantMap     map[string]string
	DefaultTenant string // Default: "scout"

	// Load: dataset + store connection
	DatasetPath string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBDatabase  string // Default: "ces"
	DBSecret    string // AWS Secrets Manager secret name for the DB password
	BatchSize   int    // Default: 1000
	DBTimeout   int    // Seconds. Default: 30

	// Optional S3 archive of the completed dataset
	S3Bucket  string
	S3Prefix  string // Default: "asset-pipeline"
	AWSRegion string

	// Logging & output control
	LogDir    string
	Debug     bool
	StdoutLog bool
	Quiet     bool
}

// LoadBuildConfig loads configuration for the build command from CLI flags,
// environment variables, and YAML file.
// Priority: CLI flags > environment variables > YAML file > defaults
func LoadBuildConfig() (*Config, error) {
	cfg := &Config{}

	inputJSON := flag.String("input", "drive_tree.json", "Drive tree export JSON path (default: drive_tree.json)")
	outputCSV := flag.String("output", "dataset_campaign_assets.csv", "Output dataset CSV path (default: dataset_campaign_assets.csv)")
	checkpointPath := flag.String("checkpoint", ".build_checkpoint.json", "Checkpoint file path (default: .build_checkpoint.json)")
	resume := flag.Bool("resume", false, "Resume from the last checkpoint")
	checkpointInterval := flag.Int("checkpoint-interval", 500, "Save checkpoint every N processed rows (default: 500)")
	defaultTenant := flag.String("default-tenant", "", "Tenant id for unmapped campaign folders (default: scout)")
	s3Bucket := flag.String("s3-bucket", "", "S3 bucket for dataset archive (optional)")
	s3Prefix := flag.String("s3-prefix", "", "S3 key prefix (default: asset-pipeline)")
	awsRegion := flag.String("aws-region", "", "AWS region for S3 archive")
	configFile := flag.String("config-file", "asset-pipeline.yaml", "Config file path (default: asset-pipeline.yaml)")
	registerCommonFlags()

	flag.Parse()

	if err := loadFile(cfg, *configFile); err != nil {
		return nil, err
	}
	loadFromEnv(cfg)

	// Override with CLI flags (highest priority)
	if *inputJSON != "" {
		cfg.InputJSON = *inputJSON
	}
	if *outputCSV != "" {
		cfg.OutputCSV = *outputCSV
	}
	if *checkpointPath != "" {
		cfg.CheckpointPath = *checkpointPath
	}
	if *resume {
		cfg.Resume = true
	}
	if *checkpointInterval > 0 {
		cfg.CheckpointInterval = *checkpointInterval
	}
	if *defaultTenant != "" {
		cfg.DefaultTenant = *defaultTenant
	}
	if *s3Bucket != "" {
		cfg.S3Bucket = *s3Bucket
	}
	if *s3Prefix != "" {
		cfg.S3Prefix = *s3Prefix
	}
	if *awsRegion != "" {
		cfg.AWSRegion = *awsRegion
	}
	applyCommonFlags(cfg)

	cfg.setDefaults()

	// Validate required fields
	if cfg.InputJSON == "" {
		return nil, fmt.Errorf("input is required")
	}
	if cfg.OutputCSV == "" {
		return nil, fmt.Errorf("output is required")
	}
	if cfg.S3Bucket != "" && cfg.AWSRegion == "" {
		return nil, fmt.Errorf("aws-region is required when -s3-bucket is set")
	}

	return cfg, nil
}

// LoadLoaderConfig loads configuration for the load command from CLI flags,
// environment variables, and YAML file.
// Priority: CLI flags > environment variables > YAML file > defaults
func LoadLoaderConfig() (*Config, error) {
	cfg := &Config{}

	datasetPath := flag.String("dataset", "dataset_campaign_assets.csv", "Dataset CSV path (default: dataset_campaign_assets.csv)")
	dbHost := flag.String("db-host", "", "Store host:port")
	dbPort := flag.Int("db-port", 3306, "Store port (default: 3306)")
	dbUser := flag.String("db-user", "", "Store username")
	dbPassword := flag.String("db-password", "", "Store password")
	dbAuth := flag.String("db-auth", "", "Store auth file path (JSON with user and password)")
	dbDatabase := flag.String("db-database", "ces", "Store database name (default: ces)")
	dbSecret := flag.String("db-secret", "", "AWS Secrets Manager secret name for the store password (optional)")
	awsRegion := flag.String("aws-region", "", "AWS region for Secrets Manager")
	batchSize := flag.Int("batch-size", 1000, "Upsert batch size (default: 1000)")
	dbTimeout := flag.Int("db-timeout", 30, "Store operation timeout in seconds (default: 30)")
	configFile := flag.String("config-file", "asset-pipeline.yaml", "Config file path (default: asset-pipeline.yaml)")
	registerCommonFlags()

	flag.Parse()

	if err := loadFile(cfg, *configFile); err != nil {
		return nil, err
	}
	loadFromEnv(cfg)

	// Override with CLI flags (highest priority)
	if *datasetPath != "" {
		cfg.DatasetPath = *datasetPath
	}
	if *dbHost != "" {
		cfg.DBHost = *dbHost
	}
	if *dbPort > 0 {
		cfg.DBPort = *dbPort
	}
	if *dbUser != "" {
		cfg.DBUser = *dbUser
	}
	if *dbPassword != "" {
		cfg.DBPassword = *dbPassword
	}
	if *dbAuth != "" {
		if err := cfg.ReadDBAuth(*dbAuth); err != nil {
			return nil, fmt.Errorf("failed to read store auth file: %w", err)
		}
	}
	if *dbDatabase != "" {
		cfg.DBDatabase = *dbDatabase
	}
	if *dbSecret != "" {
		cfg.DBSecret = *dbSecret
	}
	if *awsRegion != "" {
		cfg.AWSRegion = *awsRegion
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *dbTimeout > 0 {
		cfg.DBTimeout = *dbTimeout
	}
	applyCommonFlags(cfg)

	cfg.setDefaults()

	// Validate required fields
	if cfg.DatasetPath == "" {
		return nil, fmt.Errorf("dataset is required")
	}
	if cfg.DBHost == "" {
		return nil, fmt.Errorf("db-host is required")
	}
	if cfg.DBSecret != "" && cfg.AWSRegion == "" {
		return nil, fmt.Errorf("aws-region is required when -db-secret is set")
	}

	return cfg, nil
}

// Common flags shared by both commands. Registered on the default FlagSet so
// each command registers them exactly once.
var (
	flagLogDir    *string
	flagDebug     *bool
	flagStdoutLog *bool
	flagQuiet     *bool
)

func registerCommonFlags() {
	flagLogDir = flag.String("log-dir", "", "Log directory (default: /tmp)")
	flagDebug = flag.Bool("debug", false, "Enable debug logging")
	flagStdoutLog = flag.Bool("stdout-log", false, "Log to stdout instead of a file")
	flagQuiet = flag.Bool("quiet", false, "Suppress summary details (useful when run via script)")
}

func applyCommonFlags(cfg *Config) {
	if *flagLogDir != "" {
		cfg.LogDir = *flagLogDir
	}
	if *flagDebug {
		cfg.Debug = true
	}
	if *flagStdoutLog {
		cfg.StdoutLog = true
	}
	if *flagQuiet {
		cfg.Quiet = true
	}
}

func loadFile(cfg *Config, configFile string) error {
	if configFile == "" {
		return nil
	}
	if err := loadFromYAML(cfg, configFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.CheckpointInterval == 0 {
		c.CheckpointInterval = 500
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
	if c.DBPort == 0 {
		c.DBPort = 3306
	}
	if c.DBDatabase == "" {
		c.DBDatabase = "ces"
	}
	if c.DBTimeout == 0 {
		c.DBTimeout = 30
	}
	if c.DefaultTenant == "" {
		c.DefaultTenant = "scout"
	}
	if c.FolderMIME == "" {
		c.FolderMIME = DefaultFolderMIME
	}
	if c.RootMarker == "" {
		c.RootMarker = DefaultRootMarker
	}
	if c.FileTypes == nil {
		c.FileTypes = DefaultFileTypes
	}
	if c.TenantMap == nil {
		c.TenantMap = map[string]string{}
	}
	if c.S3Prefix == "" {
		c.S3Prefix = "asset-pipeline"
	}
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(cfg *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}

	var yamlCfg struct {
		InputJSON          string            `yaml:"input_json"`
		OutputCSV          string            `yaml:"output_csv"`
		CheckpointPath     string            `yaml:"checkpoint_path"`
		CheckpointInterval int               `yaml:"checkpoint_interval"`
		FolderMIME         string            `yaml:"folder_mime"`
		RootMarker         string            `yaml:"root_marker"`
		FileTypes          map[string]string `yaml:"file_types"`
		TenantMap          map[string]string `yaml:"tenant_map"`
		DefaultTenant      string            `yaml:"default_tenant"`
		DatasetPath        string            `yaml:"dataset_path"`
		DBHost             string            `yaml:"db_host"`
		DBPort             int               `yaml:"db_port"`
		DBUser             string            `yaml:"db_user"`
		DBPassword         string            `yaml:"db_password"`
		DBDatabase         string            `yaml:"db_database"`
		DBSecret           string            `yaml:"db_secret"`
		BatchSize          int               `yaml:"batch_size"`
		DBTimeout          int               `yaml:"db_timeout"`
		S3Bucket           string            `yaml:"s3_bucket"`
		S3Prefix           string            `yaml:"s3_prefix"`
		AWSRegion          string            `yaml:"aws_region"`
		LogDir             string            `yaml:"log_dir"`
	}

	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return err
	}

	if yamlCfg.InputJSON != "" {
		cfg.InputJSON = yamlCfg.InputJSON
	}
	if yamlCfg.OutputCSV != "" {
		cfg.OutputCSV = yamlCfg.OutputCSV
	}
	if yamlCfg.CheckpointPath != "" {
		cfg.CheckpointPath = yamlCfg.CheckpointPath
	}
	if yamlCfg.CheckpointInterval > 0 {
		cfg.CheckpointInterval = yamlCfg.CheckpointInterval
	}
	if yamlCfg.FolderMIME != "" {
		cfg.FolderMIME = yamlCfg.FolderMIME
	}
	if yamlCfg.RootMarker != "" {
		cfg.RootMarker = yamlCfg.RootMarker
	}
	if len(yamlCfg.FileTypes) > 0 {
		cfg.FileTypes = yamlCfg.FileTypes
	}
	if len(yamlCfg.TenantMap) > 0 {
		cfg.TenantMap = yamlCfg.TenantMap
	}
	if yamlCfg.DefaultTenant != "" {
		cfg.DefaultTenant = yamlCfg.DefaultTenant
	}
	if yamlCfg.DatasetPath != "" {
		cfg.DatasetPath = yamlCfg.DatasetPath
	}
	if yamlCfg.DBHost != "" {
		cfg.DBHost = yamlCfg.DBHost
	}
	if yamlCfg.DBPort > 0 {
		cfg.DBPort = yamlCfg.DBPort
	}
	if yamlCfg.DBUser != "" {
		cfg.DBUser = yamlCfg.DBUser
	}
	if yamlCfg.DBPassword != "" {
		cfg.DBPassword = yamlCfg.DBPassword
	}
	if yamlCfg.DBDatabase != "" {
		cfg.DBDatabase = yamlCfg.DBDatabase
	}
	if yamlCfg.DBSecret != "" {
		cfg.DBSecret = yamlCfg.DBSecret
	}
	if yamlCfg.BatchSize > 0 {
		cfg.BatchSize = yamlCfg.BatchSize
	}
	if yamlCfg.DBTimeout > 0 {
		cfg.DBTimeout = yamlCfg.DBTimeout
	}
	if yamlCfg.S3Bucket != "" {
		cfg.S3Bucket = yamlCfg.S3Bucket
	}
	if yamlCfg.S3Prefix != "" {
		cfg.S3Prefix = yamlCfg.S3Prefix
	}
	if yamlCfg.AWSRegion != "" {
		cfg.AWSRegion = yamlCfg.AWSRegion
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func loadFromEnv(cfg *Config) {
	if val := os.Getenv("ASSET_PIPELINE_INPUT_JSON"); val != "" {
		cfg.InputJSON = val
	}
	if val := os.Getenv("ASSET_PIPELINE_OUTPUT_CSV"); val != "" {
		cfg.OutputCSV = val
	}
	if val := os.Getenv("ASSET_PIPELINE_CHECKPOINT_PATH"); val != "" {
		cfg.CheckpointPath = val
	}
	if val := os.Getenv("ASSET_PIPELINE_CHECKPOINT_INTERVAL"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.CheckpointInterval = n
		}
	}
	if val := os.Getenv("ASSET_PIPELINE_DEFAULT_TENANT"); val != "" {
		cfg.DefaultTenant = val
	}
	if val := os.Getenv("ASSET_PIPELINE_DATASET_PATH"); val != "" {
		cfg.DatasetPath = val
	}
	if val := os.Getenv("ASSET_PIPELINE_DB_HOST"); val != "" {
		cfg.DBHost = val
	}
	if val := os.Getenv("ASSET_PIPELINE_DB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.DBPort = port
		}
	}
	if val := os.Getenv("ASSET_PIPELINE_DB_USER"); val != "" {
		cfg.DBUser = val
	}
	if val := os.Getenv("ASSET_PIPELINE_DB_PASSWORD"); val != "" {
		cfg.DBPassword = val
	}
	if val := os.Getenv("ASSET_PIPELINE_DB_DATABASE"); val != "" {
		cfg.DBDatabase = val
	}
	if val := os.Getenv("ASSET_PIPELINE_DB_SECRET"); val != "" {
		cfg.DBSecret = val
	}
	if val := os.Getenv("ASSET_PIPELINE_BATCH_SIZE"); val != "" {
		if batch, err := strconv.Atoi(val); err == nil {
			cfg.BatchSize = batch
		}
	}
	if val := os.Getenv("ASSET_PIPELINE_DB_TIMEOUT"); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil {
			cfg.DBTimeout = timeout
		}
	}
	if val := os.Getenv("ASSET_PIPELINE_S3_BUCKET"); val != "" {
		cfg.S3Bucket = val
	}
	if val := os.Getenv("ASSET_PIPELINE_S3_PREFIX"); val != "" {
		cfg.S3Prefix = val
	}
	if val := os.Getenv("ASSET_PIPELINE_AWS_REGION"); val != "" {
		cfg.AWSRegion = val
	}
	if val := os.Getenv("ASSET_PIPELINE_LOG_DIR"); val != "" {
		cfg.LogDir = val
	}
}

// GetDBDSN returns the store connection string.
func (c *Config) GetDBDSN() string {
	host := c.DBHost
	if c.DBPort > 0 && c.DBPort != 3306 {
		host = fmt.Sprintf("%s:%d", c.DBHost, c.DBPort)
	}

	dsn := fmt.Sprintf("tcp(%s)/%s?parseTime=true", host, c.DBDatabase)
	if c.DBUser != "" {
		if c.DBPassword != "" {
			dsn = fmt.Sprintf("%s:%s@%s", c.DBUser, c.DBPassword, dsn)
		} else {
			dsn = fmt.Sprintf("%s@%s", c.DBUser, dsn)
		}
	}
	return dsn
}

// FileTypeFor maps a MIME type to a friendly file type.
func (c *Config) FileTypeFor(mimeType string) string {
	if t, ok := c.FileTypes[mimeType]; ok {
		return t
	}
	return "other"
}

// TenantFor maps a campaign folder name to its tenant id, falling back to the
// configured default tenant for unmapped campaigns.
func (c *Config) TenantFor(campaign string) string {
	if t, ok := c.TenantMap[campaign]; ok {
		return t
	}
	return c.DefaultTenant
}

// ReadDBAuth reads store credentials from an auth file (JSON format).
func (c *Config) ReadDBAuth(authFile string) error {
	if authFile == "" {
		return nil
	}

	data, err := os.ReadFile(authFile)
	if err != nil {
		return fmt.Errorf("failed to read auth file: %w", err)
	}

	var auth struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}

	if err := json.Unmarshal(data, &auth); err != nil {
		return fmt.Errorf("failed to parse auth file: %w", err)
	}

	c.DBUser = auth.User
	c.DBPassword = auth.Password
	return nil
}
