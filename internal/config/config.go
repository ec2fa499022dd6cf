// Package config loads deepresearch settings from the YAML settings file,
// .env files and DEEPRESEARCH_* environment variables.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/x/exp/ordered"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/deepresearch/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

// AppName is used for the settings directory and file name.
const AppName = "deepresearch"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEEPRESEARCH_"

const (
	defaultMarkdownFormatText = "Format the response as markdown without enclosing backticks."
	defaultJSONFormatText     = "Format the response as json without enclosing backticks."
)

// Model is an LLM model entry under an API.
type Model struct {
	Name           string
	API            string
	MaxChars       int64    `yaml:"max-input-chars"`
	Aliases        []string `yaml:"aliases"`
	Fallback       string   `yaml:"fallback"`
	ThinkingBudget int      `yaml:"thinking-budget,omitempty"`
}

// API is a provider endpoint and its models.
type API struct {
	Name      string
	APIKey    string           `yaml:"api-key"`
	APIKeyEnv string           `yaml:"api-key-env"`
	APIKeyCmd string           `yaml:"api-key-cmd"`
	BaseURL   string           `yaml:"base-url"`
	Models    map[string]Model `yaml:"models"`
	User      string           `yaml:"user"`
}

// APIs keeps the order in which providers appear in the settings file.
type APIs []API

// UnmarshalYAML implements ordered API decoding.
func (apis *APIs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("apis: expected a mapping, got %v", node.Tag)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var api API
		if err := node.Content[i+1].Decode(&api); err != nil {
			return fmt.Errorf("apis.%s: %w", node.Content[i].Value, err)
		}
		api.Name = node.Content[i].Value
		*apis = append(*apis, api)
	}
	return nil
}

// Find returns the API with the given name.
func (apis APIs) Find(name string) (API, bool) {
	for _, api := range apis {
		if api.Name == name {
			return api, true
		}
	}
	return API{}, false
}

// FormatText is a map[format]formatting_text.
type FormatText map[string]string

// UnmarshalYAML accepts either a single string (markdown) or a map.
func (ft *FormatText) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		var formats map[string]string
		if err := unmarshal(&formats); err != nil {
			return err
		}
		*ft = FormatText(formats)
		return nil
	}
	*ft = FormatText{"markdown": text}
	return nil
}

// ResearchSettings configures the research pipeline.
type ResearchSettings struct {
	API               string `yaml:"api" env:"API"`
	Model             string `yaml:"model" env:"MODEL"`
	PlannerModel      string `yaml:"planner-model" env:"PLANNER_MODEL"`
	SearchModel       string `yaml:"search-model" env:"SEARCH_MODEL"`
	WriterModel       string `yaml:"writer-model" env:"WRITER_MODEL"`
	AnalystModel      string `yaml:"analyst-model" env:"ANALYST_MODEL"`
	MaxSearches       int    `yaml:"max-searches" env:"MAX_SEARCHES"`
	SearchConcurrency int    `yaml:"search-concurrency" env:"SEARCH_CONCURRENCY"`
	PlannerAttempts   int    `yaml:"planner-attempts" env:"PLANNER_ATTEMPTS"`
	NoCharts          bool   `yaml:"no-charts" env:"NO_CHARTS"`
	NoAnalysis        bool   `yaml:"no-analysis" env:"NO_ANALYSIS"`
	OutputDir         string `yaml:"output-dir" env:"OUTPUT_DIR"`

	// Prompt overrides; each may be raw text, file:// or http(s)://.
	PlannerPrompt string `yaml:"planner-prompt" env:"PLANNER_PROMPT"`
	SearchPrompt  string `yaml:"search-prompt" env:"SEARCH_PROMPT"`
	WriterPrompt  string `yaml:"writer-prompt" env:"WRITER_PROMPT"`
	AnalystPrompt string `yaml:"analyst-prompt" env:"ANALYST_PROMPT"`
}

// SearchSettings configures the web search backend.
type SearchSettings struct {
	Provider     string        `yaml:"provider" env:"PROVIDER"`
	TavilyAPIKey string        `yaml:"tavily-api-key" env:"TAVILY_API_KEY"`
	BraveAPIKey  string        `yaml:"brave-api-key" env:"BRAVE_API_KEY"`
	BaseURL      string        `yaml:"base-url" env:"BASE_URL"`
	MaxResults   int           `yaml:"max-results" env:"MAX_RESULTS"`
	QPS          float64       `yaml:"qps" env:"QPS"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	FetchPages   bool          `yaml:"fetch-pages" env:"FETCH_PAGES"`
}

// EmailSettings configures report delivery.
type EmailSettings struct {
	Enabled        bool   `yaml:"enabled" env:"ENABLED"`
	From           string `yaml:"from" env:"FROM"`
	FromName       string `yaml:"from-name" env:"FROM_NAME"`
	To             string `yaml:"to" env:"TO"`
	SendGridAPIKey string `yaml:"sendgrid-api-key" env:"SENDGRID_API_KEY"`
}

// DoctorSettings configures the connectivity self-test.
type DoctorSettings struct {
	InternetURL       string        `yaml:"internet-url" env:"INTERNET_URL"`
	ModelsURL         string        `yaml:"models-url" env:"MODELS_URL"`
	TestModel         string        `yaml:"test-model" env:"TEST_MODEL"`
	InternetTimeout   time.Duration `yaml:"internet-timeout" env:"INTERNET_TIMEOUT"`
	APITimeout        time.Duration `yaml:"api-timeout" env:"API_TIMEOUT"`
	CompletionTimeout time.Duration `yaml:"completion-timeout" env:"COMPLETION_TIMEOUT"`
	ConnectTimeout    time.Duration `yaml:"connect-timeout" env:"CONNECT_TIMEOUT"`
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	API                 string              `yaml:"default-api" env:"API"`
	Model               string              `yaml:"default-model" env:"MODEL"`
	Format              bool                `yaml:"format" env:"FORMAT"`
	FormatText          FormatText          `yaml:"format-text"`
	FormatAs            string              `yaml:"format-as" env:"FORMAT_AS"`
	Raw                 bool                `yaml:"raw" env:"RAW"`
	Quiet               bool                `yaml:"quiet" env:"QUIET"`
	MaxTokens           int64               `yaml:"max-tokens" env:"MAX_TOKENS"`
	MaxCompletionTokens int64               `yaml:"max-completion-tokens" env:"MAX_COMPLETION_TOKENS"`
	MaxInputChars       int64               `yaml:"max-input-chars" env:"MAX_INPUT_CHARS"`
	Temperature         float64             `yaml:"temp" env:"TEMP"`
	Stop                []string            `yaml:"stop" env:"STOP"`
	TopP                float64             `yaml:"topp" env:"TOPP"`
	TopK                int64               `yaml:"topk" env:"TOPK"`
	NoLimit             bool                `yaml:"no-limit" env:"NO_LIMIT"`
	CachePath           string              `yaml:"cache-path" env:"CACHE_PATH"`
	NoCache             bool                `yaml:"no-cache" env:"NO_CACHE"`
	MaxRetries          int                 `yaml:"max-retries" env:"MAX_RETRIES"`
	RequestTimeout      time.Duration       `yaml:"request-timeout" env:"REQUEST_TIMEOUT"`
	WordWrap            int                 `yaml:"word-wrap" env:"WORD_WRAP"`
	Fanciness           uint                `yaml:"fanciness" env:"FANCINESS"`
	StatusText          string              `yaml:"status-text" env:"STATUS_TEXT"`
	HTTPProxy           string              `yaml:"http-proxy" env:"HTTP_PROXY"`
	APIs                APIs                `yaml:"apis"`
	Role                string              `yaml:"role" env:"ROLE"`
	Theme               string              `yaml:"theme" env:"THEME"`
	User                string              `yaml:"user" env:"USER"`
	Roles               map[string][]string `yaml:"roles"`
	LogLevel            string              `yaml:"log-level" env:"LOG_LEVEL"`
	LogFile             string              `yaml:"log-file" env:"LOG_FILE"`
	LogFormat           string              `yaml:"log-format" env:"LOG_FORMAT"`

	MCPServers      map[string]MCPServerConfig `yaml:"mcp-servers"`
	MCPDisable      []string                   `yaml:"mcp-disable" env:"MCP_DISABLE"`
	MCPTimeout      time.Duration              `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	MCPNoInheritEnv bool                       `yaml:"mcp-no-inherit-env" env:"MCP_NO_INHERIT_ENV"`
	MCPAllowNonTTY  bool                       `yaml:"mcp-allow-non-tty" env:"MCP_ALLOW_NON_TTY"`

	Research ResearchSettings `yaml:"research" envPrefix:"RESEARCH_"`
	Search   SearchSettings   `yaml:"search" envPrefix:"SEARCH_"`
	Email    EmailSettings    `yaml:"email" envPrefix:"EMAIL_"`
	Doctor   DoctorSettings   `yaml:"doctor" envPrefix:"DOCTOR_"`
}

// Runtime holds CLI-only options that are never read from the settings file.
type Runtime struct {
	SettingsPath string
	EnvFiles     []string
	Verbose      bool
	AskModel     bool
	Prefix       string
	ContinueLast bool
	Continue     string
	Title        string
	ShowLast     bool
	Show         string
	OpenEditor   bool

	CacheReadFromID                   string
	CacheWriteToID, CacheWriteToTitle string
}

// Config is the application configuration (settings + runtime-only options).
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// MCPServerConfig holds configuration for an MCP server.
type MCPServerConfig struct {
	Type    string   `yaml:"type"`
	Command string   `yaml:"command"`
	Env     []string `yaml:"env"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
}

// Ensure loads .env files, the settings file and environment overrides, and
// applies defaults. The settings file is created from the template when it
// does not exist yet.
func Ensure() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errs.Wrap(err, "Could not determine home directory.")
	}
	return EnsureAt(filepath.Join(home, ".config", AppName))
}

// EnsureAt is Ensure with an explicit configuration directory.
func EnsureAt(dir string) (Config, error) {
	var c Config
	c.SettingsPath = filepath.Join(dir, AppName+".yml")

	files, err := LoadDotEnv(DotEnvFiles()...)
	if err != nil {
		return c, errs.Wrap(err, "Could not load .env file.")
	}
	c.EnvFiles = files

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return c, errs.Wrap(err, "Could not create configuration directory.")
	}
	if err := WriteConfigFile(c.SettingsPath); err != nil {
		return c, err
	}
	content, err := os.ReadFile(c.SettingsPath)
	if err != nil {
		return c, errs.Wrap(err, "Could not read settings file.")
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Wrap(err, "Could not parse settings file.")
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, errs.Wrap(err, "Could not parse environment into settings file.")
	}
	if err := c.mergeRoleDir(filepath.Join(dir, "roles")); err != nil {
		return c, errs.Wrap(err, "Could not load roles from roles directory.")
	}

	if c.CachePath == "" {
		c.CachePath = filepath.Join(dir, "cache")
	}
	for _, sub := range []string{"conversations", "reports"} {
		if err := os.MkdirAll(filepath.Join(c.CachePath, sub), 0o700); err != nil {
			return c, errs.Wrap(err, "Could not create cache directory.")
		}
	}

	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	setDefault(&c.WordWrap, def.WordWrap)
	setDefault(&c.FormatAs, def.FormatAs)
	setDefault(&c.MCPTimeout, def.MCPTimeout)
	setDefault(&c.LogLevel, def.LogLevel)
	setDefault(&c.LogFormat, def.LogFormat)
	setDefault(&c.API, def.API)
	setDefault(&c.Model, def.Model)
	if c.FormatText == nil {
		c.FormatText = def.FormatText
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.CachePath, AppName+".log")
	}

	r := &c.Research
	setDefault(&r.API, def.Research.API)
	setDefault(&r.Model, def.Research.Model)
	setDefault(&r.MaxSearches, def.Research.MaxSearches)
	setDefault(&r.SearchConcurrency, def.Research.SearchConcurrency)
	setDefault(&r.PlannerAttempts, def.Research.PlannerAttempts)

	s := &c.Search
	setDefault(&s.Provider, def.Search.Provider)
	setDefault(&s.MaxResults, def.Search.MaxResults)
	setDefault(&s.QPS, def.Search.QPS)
	setDefault(&s.Timeout, def.Search.Timeout)
	setDefault(&s.TavilyAPIKey, os.Getenv("TAVILY_API_KEY"))
	setDefault(&s.BraveAPIKey, os.Getenv("BRAVE_API_KEY"))
	setDefault(&c.Email.SendGridAPIKey, os.Getenv("SENDGRID_API_KEY"))

	d := &c.Doctor
	setDefault(&d.InternetURL, def.Doctor.InternetURL)
	setDefault(&d.ModelsURL, def.Doctor.ModelsURL)
	setDefault(&d.TestModel, def.Doctor.TestModel)
	setDefault(&d.InternetTimeout, def.Doctor.InternetTimeout)
	setDefault(&d.APITimeout, def.Doctor.APITimeout)
	setDefault(&d.CompletionTimeout, def.Doctor.CompletionTimeout)
	setDefault(&d.ConnectTimeout, def.Doctor.ConnectTimeout)
}

func setDefault[T cmp.Ordered](v *T, def T) {
	*v = ordered.First(*v, def)
}

// WriteConfigFile renders the settings template to path unless a file is
// already there.
func WriteConfigFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return errs.Wrap(err, "Could not create configuration file.")
	}
	defer f.Close() //nolint:errcheck

	tmpl := template.Must(template.New("config").Parse(configTemplate))
	if err := tmpl.Execute(f, struct{ Config Config }{Config: Default()}); err != nil {
		return errs.Wrap(err, "Could not render template.")
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			API:         "openai",
			Model:       "gpt-4o-mini",
			FormatAs:    "markdown",
			WordWrap:    80,
			MaxRetries:  5,
			Temperature: 1.0,
			TopP:        1.0,
			TopK:        -1,
			Fanciness:   10,
			StatusText:  "Researching",
			LogLevel:    "info",
			LogFormat:   "text",
			FormatText: FormatText{
				"markdown": defaultMarkdownFormatText,
				"json":     defaultJSONFormatText,
			},
			MCPTimeout: 15 * time.Second,
			Research: ResearchSettings{
				API:               "openai",
				Model:             "gpt-4o-mini",
				MaxSearches:       5,
				SearchConcurrency: 3,
				PlannerAttempts:   2,
			},
			Search: SearchSettings{
				Provider:   "duckduckgo",
				MaxResults: 5,
				QPS:        1,
				Timeout:    15 * time.Second,
			},
			Doctor: DoctorSettings{
				InternetURL:       "https://httpbin.org/get",
				ModelsURL:         "https://api.openai.com/v1/models",
				TestModel:         "gpt-3.5-turbo",
				InternetTimeout:   10 * time.Second,
				APITimeout:        30 * time.Second,
				CompletionTimeout: 60 * time.Second,
				ConnectTimeout:    30 * time.Second,
			},
		},
	}
}
