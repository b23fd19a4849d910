package model

import "time"

// Config holds all runtime settings for the server and the CLI
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Probe    ProbeConfig    `yaml:"probe" mapstructure:"probe"`
	Evidence EvidenceConfig `yaml:"evidence" mapstructure:"evidence"`
	Admin    AdminConfig    `yaml:"admin" mapstructure:"admin"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Brand    BrandConfig    `yaml:"brand" mapstructure:"brand"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	FrontendOrigins []string      `yaml:"frontend_origins" mapstructure:"frontend_origins"`
	TrustedProxies  []string      `yaml:"trusted_proxies" mapstructure:"trusted_proxies"` // IPs or CIDRs allowed to set X-Forwarded-For
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	CheckTimeout    time.Duration `yaml:"check_timeout" mapstructure:"check_timeout"`     // Upper bound for one check
	SubmitRate      float64       `yaml:"submit_rate" mapstructure:"submit_rate"`         // Submissions per second per client
	SubmitBurst     int           `yaml:"submit_burst" mapstructure:"submit_burst"`       // Burst per client
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the persistence backend. An empty URL runs on memory stores.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	Migrate  bool   `yaml:"migrate" mapstructure:"migrate"` // Apply migrations on startup
}

// StorageConfig controls where uploaded evidence bytes live
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir" mapstructure:"upload_dir"`
}

// SearchConfig configures the web-search provider
type SearchConfig struct {
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	CX                string        `yaml:"cx" mapstructure:"cx"`
	GL                string        `yaml:"gl" mapstructure:"gl"` // Country bias
	HL                string        `yaml:"hl" mapstructure:"hl"` // Interface language
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	ResultsPerQuery   int           `yaml:"results_per_query" mapstructure:"results_per_query"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	StrongMinResults  int           `yaml:"strong_min_results" mapstructure:"strong_min_results"`
}

// Enabled reports whether search credentials are configured
func (c SearchConfig) Enabled() bool {
	return c.APIKey != "" && c.CX != ""
}

// CacheConfig configures search-result caching
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// HTTPConfig controls outbound requests made by the probe
type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent        string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	BlockPrivateNets bool          `yaml:"block_private_nets" mapstructure:"block_private_nets"`
	RespectRobots    bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy        string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy       string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy          string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// ProbeConfig tunes the external footprint checks
type ProbeConfig struct {
	SubcheckTimeout    time.Duration `yaml:"subcheck_timeout" mapstructure:"subcheck_timeout"`
	DomainAgeThreshold time.Duration `yaml:"domain_age_threshold" mapstructure:"domain_age_threshold"`
	RDAPEndpoint       string        `yaml:"rdap_endpoint" mapstructure:"rdap_endpoint"`
	MaxLinkedAccounts  int           `yaml:"max_linked_accounts" mapstructure:"max_linked_accounts"`
	Concurrency        int           `yaml:"concurrency" mapstructure:"concurrency"`
	PhoneRegion        string        `yaml:"phone_region" mapstructure:"phone_region"`
}

// EvidenceConfig controls uploads and image-reuse detection
type EvidenceConfig struct {
	MaxUploadBytes      int64 `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	MaxImagePixels      int64 `yaml:"max_image_pixels" mapstructure:"max_image_pixels"` // Width x height
	SimilarityThreshold int   `yaml:"similarity_threshold" mapstructure:"similarity_threshold"` // Max Hamming distance
}

// AdminConfig holds the moderation credential. Empty disables moderation.
type AdminConfig struct {
	Token string `yaml:"token" mapstructure:"token"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BrandConfig is printed on rendered reports
type BrandConfig struct {
	AppName string `yaml:"app_name" mapstructure:"app_name"`
	Owner   string `yaml:"owner" mapstructure:"owner"`
	URL     string `yaml:"url" mapstructure:"url"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			FrontendOrigins: []string{"http://localhost:3000"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			CheckTimeout:    45 * time.Second,
			SubmitRate:      0.5,
			SubmitBurst:     5,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns: 10,
			Migrate:  true,
		},
		Storage: StorageConfig{
			UploadDir: "./storage/uploads",
		},
		Search: SearchConfig{
			GL:                "pk",
			HL:                "en",
			Endpoint:          "https://www.googleapis.com/customsearch/v1",
			ResultsPerQuery:   8,
			CacheTTL:          12 * time.Hour,
			RequestsPerSecond: 1,
			Burst:             5,
			StrongMinResults:  5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "./storage/cache",
			MemoryTTL: 30 * time.Minute,
		},
		HTTP: HTTPConfig{
			Timeout:          8 * time.Second,
			UserAgent:        "RiskCheckBot/1.0 (+https://github.com/ppiankov/riskcheck)",
			MaxBodyBytes:     600_000,
			BlockPrivateNets: true,
			RespectRobots:    true,
		},
		Probe: ProbeConfig{
			SubcheckTimeout:    8 * time.Second,
			DomainAgeThreshold: 365 * 24 * time.Hour,
			RDAPEndpoint:       "https://rdap.org/domain/",
			MaxLinkedAccounts:  5,
			Concurrency:        8,
			PhoneRegion:        "PK",
		},
		Evidence: EvidenceConfig{
			MaxUploadBytes:      8 << 20,
			MaxImagePixels:      25_000_000,
			SimilarityThreshold: 6,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Brand: BrandConfig{
			AppName: "RiskCheck",
			Owner:   "RiskCheck",
			URL:     "https://github.com/ppiankov/riskcheck",
		},
	}
}
