package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	EDGAR  EDGARConfig  `yaml:"edgar" mapstructure:"edgar"`
	MSHA   MSHAConfig   `yaml:"msha" mapstructure:"msha"`
	Sites  SitesConfig  `yaml:"sites" mapstructure:"sites"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the download ledger and run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures outbound HTTP and FTP requests.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// EDGARConfig configures SEC EDGAR full-text search and downloads.
type EDGARConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	SearchURL   string `yaml:"search_url" mapstructure:"search_url"`
	ArchivesURL string `yaml:"archives_url" mapstructure:"archives_url"`
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	Query       string `yaml:"query" mapstructure:"query"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// MSHAConfig configures the DOL open data API used for MSHA datasets.
type MSHAConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	CatalogURL string `yaml:"catalog_url" mapstructure:"catalog_url"`
	DataDir    string `yaml:"data_dir" mapstructure:"data_dir"`
	Agency     string `yaml:"agency" mapstructure:"agency"`
	ChunkSize  int    `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// SitesConfig configures coordinate resolution and map output.
type SitesConfig struct {
	EdgarRoot           string  `yaml:"edgar_root" mapstructure:"edgar_root"`
	Gazetteer           string  `yaml:"gazetteer" mapstructure:"gazetteer"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	Similarity          string  `yaml:"similarity" mapstructure:"similarity"`
	MaxWindow           int     `yaml:"max_window" mapstructure:"max_window"`
	Limit               int     `yaml:"limit" mapstructure:"limit"`
	GeoJSONOutput       string  `yaml:"geojson_output" mapstructure:"geojson_output"`
	HTMLOutput          string  `yaml:"html_output" mapstructure:"html_output"`
	TileURL             string  `yaml:"tile_url" mapstructure:"tile_url"`
	JurisdictionFilter  bool    `yaml:"jurisdiction_filter" mapstructure:"jurisdiction_filter"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MINESITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/minesite.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.temp_dir", "/tmp/minesite")
	v.SetDefault("edgar.user_agent", "minesite/0.1 (contact@minesite.example)")
	v.SetDefault("edgar.search_url", "https://efts.sec.gov/LATEST/search-index")
	v.SetDefault("edgar.archives_url", "https://www.sec.gov/Archives/edgar/data")
	v.SetDefault("edgar.data_dir", "data/edgar")
	v.SetDefault("edgar.query", "S-K 1300")
	v.SetDefault("edgar.concurrency", 4)
	v.SetDefault("msha.api_key", "")
	v.SetDefault("msha.base_url", "https://apiprod.dol.gov/v4")
	v.SetDefault("msha.catalog_url", "https://dol.gov/sites/dolgov/files/Data-Governance/Open%20Data%20Portal/agency-endpoint.csv")
	v.SetDefault("msha.data_dir", "data/msha")
	v.SetDefault("msha.agency", "msha")
	v.SetDefault("msha.chunk_size", 500)
	v.SetDefault("sites.edgar_root", "data/edgar")
	v.SetDefault("sites.similarity_threshold", 0.8)
	v.SetDefault("sites.similarity", "levenshtein")
	v.SetDefault("sites.max_window", 5)
	v.SetDefault("sites.limit", 0)
	v.SetDefault("sites.geojson_output", "data/edgar/mine_sites.geojson")
	v.SetDefault("sites.jurisdiction_filter", false)
	v.SetDefault("sites.tile_url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// DOL issues keys per user; accept the variable name its docs use.
	if cfg.MSHA.APIKey == "" {
		v.BindEnv("dol_api_key", "DOL_API_KEY") //nolint:errcheck
		cfg.MSHA.APIKey = v.GetString("dol_api_key")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "sites":
		if c.Sites.SimilarityThreshold <= 0 || c.Sites.SimilarityThreshold > 1 {
			problems = append(problems, "sites.similarity_threshold must be greater than 0 and at most 1")
		}
		if c.Sites.MaxWindow < 1 {
			problems = append(problems, "sites.max_window must be >= 1")
		}
		if c.Sites.Limit < 0 {
			problems = append(problems, "sites.limit must be >= 0")
		}
		if c.Sites.GeoJSONOutput == "" {
			problems = append(problems, "sites.geojson_output is required")
		}
	case "edgar":
		if c.EDGAR.UserAgent == "" {
			problems = append(problems, "edgar.user_agent is required")
		}
		if c.EDGAR.Concurrency < 1 || c.EDGAR.Concurrency > 16 {
			problems = append(problems, "edgar.concurrency must be between 1 and 16")
		}
	case "msha":
		if c.MSHA.APIKey == "" {
			problems = append(problems, "msha.api_key is required (or set DOL_API_KEY)")
		}
		if c.MSHA.ChunkSize <= 0 {
			problems = append(problems, "msha.chunk_size must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
