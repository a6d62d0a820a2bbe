package common

// Model identity reported by /api/info
const (
	ModelName = "Heart Disease Prediction"
	Algorithm = "Logistic Regression"
)

// HTTP headers
const (
	RequestIDHeader = "X-Request-ID"
)

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvEnvFile        = "ENV_FILE"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvModelDir       = "MODEL_DIR"
	EnvDataPath       = "DATA_PATH"
	EnvLogLevel       = "LOG_LEVEL"
	EnvEnableCORS     = "ENABLE_CORS"
	EnvEnableFeed     = "ENABLE_FEED"
	EnvRecordRequests = "RECORD_PREDICTIONS"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvReadTimeout    = "READ_TIMEOUT"
	EnvWriteTimeout   = "WRITE_TIMEOUT"
	EnvShutdownGrace  = "SHUTDOWN_GRACE"
	EnvRetentionDays  = "PREDICTION_RETENTION_DAYS"

	EnvDatasetPath   = "DATASET_PATH"
	EnvDatasetURL    = "DATASET_URL"
	EnvTargetColumn  = "TARGET_COLUMN"
	EnvTestSize      = "TEST_SIZE"
	EnvSplitSeed     = "SPLIT_SEED"
	EnvMaxIterations = "MAX_ITERATIONS"
	EnvTolerance     = "TOLERANCE"
	EnvRegularizeC   = "REGULARIZATION_C"
	EnvReportDir     = "REPORT_DIR"
	EnvDownloadRetry = "DOWNLOAD_RETRIES"
	EnvFetchTimeout  = "DOWNLOAD_TIMEOUT"
)

// Configuration defaults
const (
	DefaultListenAddr     = ":5000"
	DefaultModelDir       = "models"
	DefaultDataPath       = "data"
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = "5s"
	DefaultReadTimeout    = "10s"
	DefaultWriteTimeout   = "10s"
	DefaultShutdownGrace  = "10s"
	DefaultRetentionDays  = 30

	DefaultDatasetPath   = "data/heart.csv"
	DefaultDatasetURL    = "https://archive.ics.uci.edu/ml/machine-learning-databases/heart-disease/processed.cleveland.data"
	DefaultTargetColumn  = "target"
	DefaultTestSize      = 0.2
	DefaultSplitSeed     = 42
	DefaultMaxIterations = 1000
	DefaultTolerance     = 1e-4
	DefaultRegularizeC   = 1.0
	DefaultReportDir     = "reports"
	DefaultDownloadRetry = 3
	DefaultFetchTimeout  = "30s"
	DefaultSyntheticRows = 303
)

// Client-facing error messages
const (
	ErrMsgModelNotLoaded   = "Model not loaded. Please ensure the model file exists."
	ErrMsgPrediction       = "Error making prediction"
	ErrMsgNotFound         = "Page not found"
	ErrMsgMethodNotAllowed = "Method not allowed"
	ErrMsgInvalidJSON      = "Invalid JSON payload"
	ErrMsgInvalidForm      = "Invalid form payload"
)
