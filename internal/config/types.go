package config

// Config is the top-level configuration parsed from repofactor YAML.
type Config struct {
	Backend  Backend  `yaml:"backend"`
	GitHub   GitHub   `yaml:"github"`
	Database Database `yaml:"database"`
	Storage  Storage  `yaml:"storage"`
	Limits   Limits   `yaml:"limits"`
	Logging  Logging  `yaml:"logging"`
}

// Backend configures the hosted reasoning service the agents call.
// The API key itself is never stored in config, only the name of the
// environment variable holding it.
type Backend struct {
	StudioURL    string  `yaml:"studio_url"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	MonthlyQuota int     `yaml:"monthly_quota"`
	Timeout      string  `yaml:"timeout"`
}

// GitHub configures the pre-flight repository validation client.
type GitHub struct {
	TokenEnv string `yaml:"token_env"`
}

// Database selects and configures the event-log backend.
type Database struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	Path   string `yaml:"path"`   // sqlite file, defaults to ~/.repofactor/repofactor.db
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// Storage configures on-disk locations for run state and clone caches.
type Storage struct {
	BaseDir       string `yaml:"base_dir"`        // defaults to ~/.repofactor
	CloneCacheDir string `yaml:"clone_cache_dir"` // defaults to a temp dir
}

// Limits bounds how much context flows between stages.
type Limits struct {
	LogTail          int `yaml:"log_tail"`           // execution-log lines forwarded to research
	MaxFileBytes     int `yaml:"max_file_bytes"`     // per-file read cap from a repo snapshot
	MaxAnalysisFiles int `yaml:"max_analysis_files"` // relevant files kept by the analysis scorer
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
