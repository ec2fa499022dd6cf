package agent

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/caarlos0/go-shellwords"
	"github.com/charmbracelet/x/exp/ordered"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/fantasybridge"
	"github.com/dotcommander/deepresearch/internal/stream"
)

// credential says where a provider's key comes from when the settings
// do not name one.
type credential struct {
	label    string
	env      string
	docs     string
	optional bool
}

var credentials = map[string]credential{
	"anthropic":  {label: "Anthropic", env: "ANTHROPIC_API_KEY", docs: "https://console.anthropic.com/settings/keys"},
	"google":     {label: "Google", env: "GOOGLE_API_KEY", docs: "https://aistudio.google.com/app/apikey"},
	"openrouter": {label: "OpenRouter", env: "OPENROUTER_API_KEY", docs: "https://openrouter.ai/keys"},
	"vercel":     {label: "Vercel AI Gateway", env: "VERCEL_API_KEY", docs: "https://vercel.com/dashboard/tokens"},
	"cohere":     {label: "Cohere", env: "COHERE_API_KEY", docs: "https://dashboard.cohere.com/api-keys"},
	"azure":      {label: "Azure", env: "AZURE_OPENAI_KEY", docs: "https://aka.ms/oai/access"},
	"azure-ad":   {label: "Azure", env: "AZURE_OPENAI_KEY", docs: "https://aka.ms/oai/access"},
	"bedrock":    {label: "Bedrock", optional: true},
	"ollama":     {label: "Ollama", optional: true},
}

var openAICredential = credential{label: "OpenAI", env: "OPENAI_API_KEY", docs: "https://platform.openai.com/account/api-keys"}

const ollamaBaseURL = "http://localhost:11434/v1"

// providerConfig resolves the key and endpoint for mod. APIs without an
// entry in credentials are treated as OpenAI compatible.
func providerConfig(ctx context.Context, api config.API, mod config.Model) (fantasybridge.Config, error) {
	cred, ok := credentials[mod.API]
	if !ok {
		cred = openAICredential
	}
	pc := fantasybridge.Config{API: mod.API, BaseURL: api.BaseURL}

	switch mod.API {
	case "ollama":
		pc.BaseURL = ordered.First(api.BaseURL, ollamaBaseURL)
		return pc, nil
	case "azure-ad":
		pc.API = "azure"
	case "google":
		pc.ThinkingBudget = mod.ThinkingBudget
	}

	key, err := cred.key(ctx, api)
	if err != nil {
		return fantasybridge.Config{}, errs.Reasoned(err, cred.label+" authentication failed")
	}
	pc.APIKey = key
	return pc, nil
}

// key prefers what the settings say over the provider's default variable.
func (c credential) key(ctx context.Context, api config.API) (string, error) {
	key, err := configuredKey(ctx, api)
	if err != nil || key != "" || c.optional {
		return key, err
	}
	if key = os.Getenv(c.env); key != "" {
		return key, nil
	}
	return "", errs.Error{
		Reason: fmt.Sprintf("%s required; set it in .env or in the environment.", c.env),
		Err:    errs.UserErrorf("You can grab one at %s", c.docs),
	}
}

// configuredKey resolves api-key, then api-key-env, then api-key-cmd.
func configuredKey(ctx context.Context, api config.API) (string, error) {
	if api.APIKey != "" {
		return api.APIKey, nil
	}
	if api.APIKeyCmd == "" {
		if api.APIKeyEnv == "" {
			return "", nil
		}
		return os.Getenv(api.APIKeyEnv), nil
	}

	args, err := shellwords.Parse(api.APIKeyCmd)
	if err != nil {
		return "", errs.Wrap(err, "Failed to parse api-key-cmd")
	}
	if len(args) == 0 {
		return "", errs.Error{Reason: "api-key-cmd is empty"}
	}
	// #nosec G204 -- api-key-cmd comes from the user's own settings.
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return "", errs.Wrap(err, "Cannot exec api-key-cmd")
	}
	return strings.TrimSpace(string(out)), nil
}

// proxyClient returns an HTTP client that goes through httpProxy, or nil
// when no proxy is set.
func proxyClient(httpProxy string) (*http.Client, error) {
	if httpProxy == "" {
		return nil, nil //nolint:nilnil
	}
	proxyURL, err := url.Parse(httpProxy)
	if err != nil {
		return nil, errs.Wrap(err, "There was an error parsing your proxy URL.")
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errs.Wrap(fmt.Errorf("default transport is %T", http.DefaultTransport), "Could not configure proxy.")
	}
	tr := base.Clone()
	tr.Proxy = http.ProxyURL(proxyURL)
	tr.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	return &http.Client{Transport: tr}, nil
}

// NewFantasyClient is the default ClientFactory.
func NewFantasyClient(cfg fantasybridge.Config) (stream.Client, error) {
	if cfg.API == "" {
		return nil, errs.Error{Reason: "missing fantasy provider configuration"}
	}
	client, err := fantasybridge.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("new fantasy bridge client: %w", err)
	}
	return client, nil
}
