package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingSecret is returned when key, iv or salt is absent from the encryption section.
var ErrMissingSecret = errors.New("encryption key/iv/salt not configured")

// Config represents the pipeline configuration
type Config struct {
	Encryption EncryptionConfig `yaml:"encryption"`
	S3         S3Config         `yaml:"s3_details"`
	Postgres   DatabaseConfig   `yaml:"postgresql"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// EncryptionConfig holds the codec material. AccessKey and SecretAccessKey are stored encrypted.
type EncryptionConfig struct {
	Key             string `yaml:"key"`
	IV              string `yaml:"iv"`
	Salt            string `yaml:"salt"`
	AccessKey       string `yaml:"access_key" validate:"required"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required"`
}

// S3Config describes where the extracts live
type S3Config struct {
	BucketName     string `yaml:"bucket_name" validate:"required"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	PathToDownload string `yaml:"path_to_download" validate:"required"`
	ListOfFiles    string `yaml:"list_of_files" validate:"required"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host                string `yaml:"host" validate:"required"`
	Port                int    `yaml:"port" validate:"gte=1,lte=65535"`
	Database            string `yaml:"database" validate:"required"`
	User                string `yaml:"user" validate:"required"`
	Password            string `yaml:"password"`
	SSLMode             string `yaml:"sslmode"`
	MaintenanceDatabase string `yaml:"maintenance_database"`
}

// SourceFiles maps each input table to its local file name
type SourceFiles struct {
	Sales       string `yaml:"sales" validate:"required"`
	Customers   string `yaml:"customers" validate:"required"`
	Restaurants string `yaml:"restaurants" validate:"required"`
	Delivery    string `yaml:"delivery" validate:"required"`
}

type PipelineConfig struct {
	Workers   int           `yaml:"workers" validate:"gte=1"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	StatsPath string        `yaml:"stats_path"`
	TempDir   string        `yaml:"temp_dir"`
	Sources   SourceFiles   `yaml:"sources"`
}

// ArchiveConfig enables the optional report snapshots. Empty values disable them.
type ArchiveConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	XLSXPath string `yaml:"xlsx_path"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
	Job            string `yaml:"job"`
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Encoding string `yaml:"encoding" validate:"omitempty,oneof=console json"`
}

// Default returns a configuration with every optional field populated
func Default() *Config {
	return &Config{
		S3: S3Config{
			Region:         "us-east-1",
			PathToDownload: "./data",
		},
		Postgres: DatabaseConfig{
			Host:                "localhost",
			Port:                5432,
			User:                "postgres",
			SSLMode:             "disable",
			MaintenanceDatabase: "postgres",
		},
		Pipeline: PipelineConfig{
			Workers:   runtime.NumCPU(),
			Timeout:   time.Hour,
			StatsPath: "etl_stats.json",
			TempDir:   os.TempDir(),
			Sources: SourceFiles{
				Sales:       "sales_data_file.csv",
				Customers:   "customer_data_file.csv",
				Restaurants: "restaurant_data_file.csv",
				Delivery:    "delivery_data_file.csv",
			},
		},
		Archive: ArchiveConfig{Prefix: "reports"},
		Metrics: MetricsConfig{Job: "feastmetrics"},
		Log:     LogConfig{Level: "info", Encoding: "console"},
	}
}

// Load reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. envFile is optional.
func Load(path, envFile string) (*Config, error) {
	cfg, err := read(path, envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEncryption returns only the encryption section. The rest of the file is
// not validated, so it works before the encrypted keys have been produced.
func LoadEncryption(path, envFile string) (EncryptionConfig, error) {
	cfg, err := read(path, envFile)
	if err != nil {
		return EncryptionConfig{}, err
	}
	if err := cfg.Encryption.CheckSecrets(); err != nil {
		return EncryptionConfig{}, err
	}
	return cfg.Encryption, nil
}

func read(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse decodes YAML over the defaults without validating
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Encryption.Key, "FEASTMETRICS_ENCRYPTION_KEY")
	override(&c.Encryption.IV, "FEASTMETRICS_ENCRYPTION_IV")
	override(&c.Encryption.Salt, "FEASTMETRICS_ENCRYPTION_SALT")
	override(&c.Postgres.Host, "FEASTMETRICS_DB_HOST")
	override(&c.Postgres.Password, "FEASTMETRICS_DB_PASSWORD")
	if v, ok := os.LookupEnv("FEASTMETRICS_DB_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Postgres.Port = port
		}
	}
}

func override(dst *string, key string) {
	if value, exists := os.LookupEnv(key); exists {
		*dst = value
	}
}

// Validate checks secret material first so a missing key/iv/salt is
// reported on its own, then runs the struct rules.
func (c *Config) Validate() error {
	if err := c.Encryption.CheckSecrets(); err != nil {
		return err
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(c.S3.Files()) == 0 {
		return fmt.Errorf("invalid config: s3_details.list_of_files is empty")
	}
	return c.checkSources()
}

// checkSources requires every pipeline source to be one of the downloaded files
func (c *Config) checkSources() error {
	fetched := make(map[string]bool)
	for _, key := range c.S3.Files() {
		fetched[path.Base(key)] = true
	}
	src := c.Pipeline.Sources
	var missing []string
	for _, name := range []string{src.Sales, src.Customers, src.Restaurants, src.Delivery} {
		if !fetched[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid config: pipeline.sources not in s3_details.list_of_files: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CheckSecrets reports which of key, iv and salt are missing
func (e EncryptionConfig) CheckSecrets() error {
	var missing []string
	if e.Key == "" {
		missing = append(missing, "key")
	}
	if e.IV == "" {
		missing = append(missing, "iv")
	}
	if e.Salt == "" {
		missing = append(missing, "salt")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingSecret, strings.Join(missing, ", "))
	}
	return nil
}

// EncryptedAccessKey returns the stored access key without its surrounding quotes
func (e EncryptionConfig) EncryptedAccessKey() string {
	return unwrap(e.AccessKey, `"'`)
}

func (e EncryptionConfig) EncryptedSecretAccessKey() string {
	return unwrap(e.SecretAccessKey, `"'`)
}

// Files splits list_of_files. The list may be written as "[a,b,c]".
func (s S3Config) Files() []string {
	raw := unwrap(strings.TrimSpace(s.ListOfFiles), "[]")
	var files []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.Trim(strings.TrimSpace(f), `"'`)
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// ConnectionString builds a PostgreSQL connection string for the target database
func (d *DatabaseConfig) ConnectionString() string {
	return d.connectionString(d.Database)
}

// MaintenanceConnectionString points at the database used to create the target
func (d *DatabaseConfig) MaintenanceConnectionString() string {
	name := d.MaintenanceDatabase
	if name == "" {
		name = "postgres"
	}
	return d.connectionString(name)
}

func (d *DatabaseConfig) connectionString(database string) string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		dsnValue(d.Host), d.Port, dsnValue(database), dsnValue(d.User), dsnValue(d.Password), dsnValue(sslmode),
	)
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// dsnValue single-quotes a keyword/value connection string value
func dsnValue(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

func unwrap(s, cutset string) string {
	if len(s) >= 2 && strings.ContainsRune(cutset, rune(s[0])) && strings.ContainsRune(cutset, rune(s[len(s)-1])) {
		return s[1 : len(s)-1]
	}
	return s
}
