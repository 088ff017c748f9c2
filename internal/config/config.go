package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/filter"
)

const (
	configPathEnv     = "SENTINEL_CONFIG"
	dataDirEnv        = "SENTINEL_DATA_DIR"
	logLevelEnv       = "SENTINEL_LOG_LEVEL"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	oracleEndpointEnv = "ORACLE_ENDPOINT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Oracle providers.
const (
	ProviderAuto   = "auto"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderHTTP   = "http"
	ProviderNone   = "none"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Browser       BrowserConfig      `yaml:"browser"`
	Filter        FilterConfig       `yaml:"filter"`
	Oracle        OracleConfig       `yaml:"oracle"`
	Aggregate     AggregateConfig    `yaml:"aggregate"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Output        OutputConfig       `yaml:"output"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Notifications NotificationConfig `yaml:"notifications"`
	Standards     StandardsConfig    `yaml:"standards"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects level, format and an optional rotating file sink.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// FetchConfig tunes the light strategy and the per-strategy retry policy.
type FetchConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"maxAttempts"`
	InitialBackoff  time.Duration `yaml:"initialBackoff"`
	MaxBackoff      time.Duration `yaml:"maxBackoff"`
	RevalidateAfter int           `yaml:"revalidateAfter"`
}

// BrowserConfig controls the heavy strategy.
type BrowserConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Bin               string        `yaml:"bin"`
	Headless          bool          `yaml:"headless"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout"`
	HumanDelay        bool          `yaml:"humanDelay"`
	ViewportWidth     int           `yaml:"viewportWidth"`
	ViewportHeight    int           `yaml:"viewportHeight"`
}

// FilterConfig holds the freshness window and keyword fallback table.
type FilterConfig struct {
	FreshnessDays   int              `yaml:"freshnessDays"`
	FutureTolerance time.Duration    `yaml:"futureTolerance"`
	MinKeywordScore int              `yaml:"minKeywordScore"`
	Keywords        []filter.Keyword `yaml:"keywords"`
}

// OracleConfig picks and tunes the analysis oracle.
type OracleConfig struct {
	Provider          string        `yaml:"provider"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
	Timeout           time.Duration `yaml:"timeout"`
	OpenAI            OpenAIConfig  `yaml:"openai"`
	Gemini            GeminiConfig  `yaml:"gemini"`
	HTTP              HTTPConfig    `yaml:"http"`
}

// OpenAIConfig defines how to contact an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL      string  `yaml:"baseUrl"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"apiKey"`
	Temperature  float32 `yaml:"temperature"`
	SystemPrompt string  `yaml:"systemPrompt"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
}

// HTTPConfig describes a self-hosted analysis service.
type HTTPConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// AggregateConfig is the aggregation policy.
type AggregateConfig struct {
	Granularity           string  `yaml:"granularity"`
	DegradedWeight        float64 `yaml:"degradedWeight"`
	IncludeSelfReferences bool    `yaml:"includeSelfReferences"`
	// HistoryWindows bounds how many windows back the archive is read;
	// zero reads all of it.
	HistoryWindows int `yaml:"historyWindows"`
}

// PipelineConfig bounds a run.
type PipelineConfig struct {
	FetchWorkers int           `yaml:"fetchWorkers"`
	RunTimeout   time.Duration `yaml:"runTimeout"`
	MaxArticles  int           `yaml:"maxArticles"`
}

// OutputConfig points at the artifact directory.
type OutputConfig struct {
	DataDir string `yaml:"dataDir"`
}

// ArchiveConfig locates the profile archive. An empty path disables it.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig enables the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// StandardsConfig points at the 3GPP working-group directory listings that
// meeting reports are read from.
type StandardsConfig struct {
	Enabled          bool `yaml:"enabled"`
	MeetingsPerGroup int  `yaml:"meetingsPerGroup"`
	// Strategy pins how listings and reports are fetched; empty lets the
	// orchestrator escalate like it does for feeds.
	Strategy string               `yaml:"strategy"`
	Groups   []WorkingGroupConfig `yaml:"groups"`
}

// WorkingGroupConfig is one working group and the listing of its meetings.
type WorkingGroupConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SourceConfig describes a single feed endpoint.
type SourceConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Region string `yaml:"region"`
	// Strategy pins light or heavy and disables escalation.
	Strategy string `yaml:"strategy"`
}

// Load reads the .env file and the YAML configuration (if present) over the
// defaults, then applies environment overrides. An explicit path wins over
// SENTINEL_CONFIG.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Output.DataDir = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Oracle.OpenAI.APIKey = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Oracle.Gemini.APIKey = v
	}

	if v := os.Getenv(oracleEndpointEnv); v != "" {
		c.Oracle.HTTP.Endpoint = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) validate() error {
	if _, err := domain.ParseGranularity(c.Aggregate.Granularity); err != nil {
		return fmt.Errorf("config aggregate: %w", err)
	}
	switch c.Oracle.Provider {
	case "", ProviderAuto, ProviderOpenAI, ProviderGemini, ProviderHTTP, ProviderNone:
	default:
		return fmt.Errorf("config oracle: unknown provider %q", c.Oracle.Provider)
	}
	if c.Output.DataDir == "" {
		return errors.New("config output: dataDir is empty")
	}
	if c.Fetch.RevalidateAfter < 0 {
		return fmt.Errorf("config fetch: revalidateAfter %d is negative", c.Fetch.RevalidateAfter)
	}
	if err := c.Standards.validate(); err != nil {
		return fmt.Errorf("config standards: %w", err)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("config sources[%d]: url is empty", i)
		}
		if s.Strategy != "" {
			if _, err := domain.ParseStrategyKind(s.Strategy); err != nil {
				return fmt.Errorf("config sources[%d]: %w", i, err)
			}
		}
		if seen[s.URL] {
			return fmt.Errorf("config sources[%d]: duplicate url %s", i, s.URL)
		}
		seen[s.URL] = true
	}
	return nil
}

func (s StandardsConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if s.MeetingsPerGroup < 1 {
		return fmt.Errorf("meetingsPerGroup %d is below 1", s.MeetingsPerGroup)
	}
	if s.Strategy != "" {
		if _, err := domain.ParseStrategyKind(s.Strategy); err != nil {
			return err
		}
	}
	if len(s.Groups) == 0 {
		return errors.New("no working groups")
	}
	for i, g := range s.Groups {
		if strings.TrimSpace(g.Name) == "" || strings.TrimSpace(g.URL) == "" {
			return fmt.Errorf("groups[%d]: name and url are required", i)
		}
	}
	return nil
}

// WorkingGroups converts the configured listings into page sources, in order.
func (c Config) WorkingGroups() []domain.Source {
	out := make([]domain.Source, 0, len(c.Standards.Groups))
	strategy, _ := domain.ParseStrategyKind(c.Standards.Strategy)
	for _, g := range c.Standards.Groups {
		out = append(out, domain.Source{
			Name:     strings.TrimSpace(g.Name),
			URL:      strings.TrimSpace(g.URL),
			Strategy: strategy,
			Payload:  domain.PayloadPage,
		})
	}
	return out
}

// DomainSources converts the configured feeds into domain sources, in order.
func (c Config) DomainSources() []domain.Source {
	out := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		src := domain.Source{Name: s.Name, URL: strings.TrimSpace(s.URL), Region: s.Region}
		if src.Name == "" {
			src.Name = src.Domain()
		}
		if s.Strategy != "" {
			src.Strategy, _ = domain.ParseStrategyKind(s.Strategy)
		}
		out = append(out, src)
	}
	return out
}

// OracleProvider resolves "auto" to the first provider with credentials.
func (c Config) OracleProvider() string {
	switch c.Oracle.Provider {
	case "", ProviderAuto:
	default:
		return c.Oracle.Provider
	}
	switch {
	case c.Oracle.OpenAI.APIKey != "":
		return ProviderOpenAI
	case c.Oracle.Gemini.APIKey != "":
		return ProviderGemini
	case c.Oracle.HTTP.Endpoint != "":
		return ProviderHTTP
	default:
		return ProviderNone
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text", MaxSizeMB: 20, MaxBackups: 5, MaxAgeDays: 30},
		Fetch: FetchConfig{
			Timeout:        20 * time.Second,
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     10 * time.Second,
		},
		Browser: BrowserConfig{
			Enabled:           true,
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			HumanDelay:        true,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
		},
		Filter: FilterConfig{
			FreshnessDays:   30,
			FutureTolerance: 24 * time.Hour,
			MinKeywordScore: 3,
		},
		Oracle: OracleConfig{
			Provider:          ProviderAuto,
			Concurrency:       3,
			RequestsPerMinute: 30,
			Timeout:           60 * time.Second,
			OpenAI:            OpenAIConfig{Model: "gpt-4o-mini"},
			Gemini:            GeminiConfig{Model: "gemini-2.0-flash"},
		},
		Aggregate: AggregateConfig{
			Granularity:           string(domain.GranularityQuarter),
			DegradedWeight:        0.5,
			IncludeSelfReferences: true,
		},
		Pipeline: PipelineConfig{FetchWorkers: 5, RunTimeout: 20 * time.Minute},
		Output:   OutputConfig{DataDir: "data"},
		Archive:  ArchiveConfig{Enabled: true},
		Standards: StandardsConfig{
			MeetingsPerGroup: 1,
			Strategy:         string(domain.StrategyLight),
			Groups: []WorkingGroupConfig{
				{Name: "RAN1", URL: "https://www.3gpp.org/ftp/tsg_ran/WG1_RL1/"},
				{Name: "RAN2", URL: "https://www.3gpp.org/ftp/tsg_ran/WG2_RL2/"},
				{Name: "RAN3", URL: "https://www.3gpp.org/ftp/tsg_ran/WG3_Iu/"},
				{Name: "SA2", URL: "https://www.3gpp.org/ftp/tsg_sa/WG2_Arch/"},
				{Name: "SA6", URL: "https://www.3gpp.org/ftp/tsg_sa/WG6_MissionCritical/"},
			},
		},
		Sources: []SourceConfig{
			{Name: "Ericsson", URL: "https://www.ericsson.com/en/blog/rss", Region: "EU"},
			{Name: "Thales", URL: "https://www.thalesgroup.com/en/rss.xml", Region: "EU"},
			{Name: "MDPI Engineering", URL: "https://www.mdpi.com/rss/journal/engineering"},
		},
	}
}
