// Package cfg loads service and training configuration from an optional YAML file, a .env
// file and the environment. Environment variables override file values.
package cfg

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"heart-predictor/internal/common"
)

// Settings configures heartserve.
type Settings struct {
	ListenAddr        string `validate:"required"`
	ModelDir          string `validate:"required"`
	DataPath          string `validate:"required"`
	LogLevel          string `validate:"oneof=trace debug info warn error fatal panic disabled"`
	EnableCORS        bool
	EnableFeed        bool
	RecordPredictions bool
	RetentionDays     int           `validate:"gte=0,lte=3650"`
	RequestTimeout    time.Duration `validate:"gte=100ms,lte=5m"`
	ReadTimeout       time.Duration `validate:"gte=1s,lte=10m"`
	WriteTimeout      time.Duration `validate:"gte=1s,lte=10m"`
	ShutdownGrace     time.Duration `validate:"gte=1s,lte=5m"`
}

// TrainSettings configures heartctl train.
type TrainSettings struct {
	DatasetPath     string  `validate:"required"`
	DatasetURL      string  `validate:"omitempty,url"`
	TargetColumn    string  `validate:"required"`
	TestSize        float64 `validate:"gte=0.05,lte=0.5"`
	Seed            int64
	MaxIterations   int           `validate:"gte=1,lte=100000"`
	Tolerance       float64       `validate:"gt=0,lt=1"`
	C               float64       `validate:"gt=0"`
	ModelDir        string        `validate:"required"`
	DataPath        string        `validate:"required"`
	ReportDir       string        `validate:"required"`
	DownloadRetries int           `validate:"gte=0,lte=10"`
	DownloadTimeout time.Duration `validate:"gte=1s,lte=10m"`
	LogLevel        string        `validate:"oneof=trace debug info warn error fatal panic disabled"`
}

type ConfigFile struct {
	Server struct {
		ListenAddr        string `yaml:"listenAddr"`
		EnableCORS        *bool  `yaml:"enableCORS"`
		EnableFeed        *bool  `yaml:"enableFeed"`
		RecordPredictions *bool  `yaml:"recordPredictions"`
		RetentionDays     int    `yaml:"retentionDays"`
		RequestTimeout    string `yaml:"requestTimeout"`
		ReadTimeout       string `yaml:"readTimeout"`
		WriteTimeout      string `yaml:"writeTimeout"`
		ShutdownGrace     string `yaml:"shutdownGrace"`
	} `yaml:"server"`

	Training struct {
		DatasetPath     string  `yaml:"datasetPath"`
		DatasetURL      string  `yaml:"datasetURL"`
		TargetColumn    string  `yaml:"targetColumn"`
		TestSize        float64 `yaml:"testSize"`
		Seed            *int64  `yaml:"seed"`
		MaxIterations   int     `yaml:"maxIterations"`
		Tolerance       float64 `yaml:"tolerance"`
		C               float64 `yaml:"c"`
		ReportDir       string  `yaml:"reportDir"`
		DownloadRetries *int    `yaml:"downloadRetries"`
		DownloadTimeout string  `yaml:"downloadTimeout"`
	} `yaml:"training"`

	System struct {
		ModelDir string `yaml:"modelDir"`
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

var validate = validator.New()

// Load reads serving settings.
func Load() (Settings, error) {
	file, err := readConfig()
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		ListenAddr:        getEnvOrDefault(common.EnvListenAddr, orString(file.Server.ListenAddr, common.DefaultListenAddr)),
		ModelDir:          getEnvOrDefault(common.EnvModelDir, orString(file.System.ModelDir, common.DefaultModelDir)),
		DataPath:          getEnvOrDefault(common.EnvDataPath, orString(file.System.DataPath, common.DefaultDataPath)),
		LogLevel:          getEnvOrDefault(common.EnvLogLevel, orString(file.System.LogLevel, common.DefaultLogLevel)),
		EnableCORS:        getBoolOrDefault(common.EnvEnableCORS, orBool(file.Server.EnableCORS, true)),
		EnableFeed:        getBoolOrDefault(common.EnvEnableFeed, orBool(file.Server.EnableFeed, true)),
		RecordPredictions: getBoolOrDefault(common.EnvRecordRequests, orBool(file.Server.RecordPredictions, true)),
		RetentionDays:     getIntOrDefault(common.EnvRetentionDays, orInt(file.Server.RetentionDays, common.DefaultRetentionDays)),
		RequestTimeout:    getDurationOrDefault(common.EnvRequestTimeout, orDuration(file.Server.RequestTimeout, common.DefaultRequestTimeout)),
		ReadTimeout:       getDurationOrDefault(common.EnvReadTimeout, orDuration(file.Server.ReadTimeout, common.DefaultReadTimeout)),
		WriteTimeout:      getDurationOrDefault(common.EnvWriteTimeout, orDuration(file.Server.WriteTimeout, common.DefaultWriteTimeout)),
		ShutdownGrace:     getDurationOrDefault(common.EnvShutdownGrace, orDuration(file.Server.ShutdownGrace, common.DefaultShutdownGrace)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// LoadTraining reads training settings.
func LoadTraining() (TrainSettings, error) {
	file, err := readConfig()
	if err != nil {
		return TrainSettings{}, err
	}

	seed := int64(common.DefaultSplitSeed)
	if file.Training.Seed != nil {
		seed = *file.Training.Seed
	}
	retries := common.DefaultDownloadRetry
	if file.Training.DownloadRetries != nil {
		retries = *file.Training.DownloadRetries
	}

	settings := TrainSettings{
		DatasetPath:     getEnvOrDefault(common.EnvDatasetPath, orString(file.Training.DatasetPath, common.DefaultDatasetPath)),
		DatasetURL:      getEnvOrDefault(common.EnvDatasetURL, orString(file.Training.DatasetURL, common.DefaultDatasetURL)),
		TargetColumn:    getEnvOrDefault(common.EnvTargetColumn, orString(file.Training.TargetColumn, common.DefaultTargetColumn)),
		TestSize:        getFloatOrDefault(common.EnvTestSize, orFloat(file.Training.TestSize, common.DefaultTestSize)),
		Seed:            int64(getIntOrDefault(common.EnvSplitSeed, int(seed))),
		MaxIterations:   getIntOrDefault(common.EnvMaxIterations, orInt(file.Training.MaxIterations, common.DefaultMaxIterations)),
		Tolerance:       getFloatOrDefault(common.EnvTolerance, orFloat(file.Training.Tolerance, common.DefaultTolerance)),
		C:               getFloatOrDefault(common.EnvRegularizeC, orFloat(file.Training.C, common.DefaultRegularizeC)),
		ModelDir:        getEnvOrDefault(common.EnvModelDir, orString(file.System.ModelDir, common.DefaultModelDir)),
		DataPath:        getEnvOrDefault(common.EnvDataPath, orString(file.System.DataPath, common.DefaultDataPath)),
		ReportDir:       getEnvOrDefault(common.EnvReportDir, orString(file.Training.ReportDir, common.DefaultReportDir)),
		DownloadRetries: getIntOrDefault(common.EnvDownloadRetry, retries),
		DownloadTimeout: getDurationOrDefault(common.EnvFetchTimeout, orDuration(file.Training.DownloadTimeout, common.DefaultFetchTimeout)),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orString(file.System.LogLevel, common.DefaultLogLevel)),
	}

	if err := validateTrainSettings(&settings); err != nil {
		return TrainSettings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// LoadDotEnv loads ENV_FILE, or .env, into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv() error {
	path := getEnvOrDefault(common.EnvEnvFile, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// readConfig returns the parsed CONFIG_FILE, or an empty config when it is unset.
func readConfig() (ConfigFile, error) {
	var config ConfigFile
	path := os.Getenv(common.EnvConfigFile)
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// validateSettings checks struct tags and the listen address.
func validateSettings(settings *Settings) error {
	if err := validate.Struct(settings); err != nil {
		return describe(err)
	}
	if _, _, err := net.SplitHostPort(settings.ListenAddr); err != nil {
		return fmt.Errorf("listen address must be host:port, got %q", settings.ListenAddr)
	}
	return nil
}

// ValidateTraining rechecks training settings after callers override fields.
func ValidateTraining(settings TrainSettings) error {
	if err := validateTrainSettings(&settings); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func validateTrainSettings(settings *TrainSettings) error {
	if err := validate.Struct(settings); err != nil {
		return describe(err)
	}
	return nil
}

// describe turns the first validator failure into a readable error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if fe.Param() == "" {
		return fmt.Errorf("%s failed %s, got %v", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func orBool(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

// orDuration parses v, falling back to def (which must parse) when v is empty or invalid.
func orDuration(v, def string) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	d, _ := time.ParseDuration(def)
	return d
}
