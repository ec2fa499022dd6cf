// Package doctor checks that the OpenAI key, the network and the API are
// usable, and explains what to try when they are not.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/logging"
)

// Status of a single check.
type Status string

// Check statuses.
const (
	StatusOK   Status = "ok"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Check names.
const (
	CheckEnvironment = "Environment Variables"
	CheckInternet    = "Internet Connectivity"
	CheckAPI         = "OpenAI API Connectivity"
	CheckCompletion  = "Extended Timeout Completion"
)

const maxBodyInDetail = 300

// Suggestions are always shown after the checks.
var Suggestions = []string{
	"Check your internet connection and firewall settings",
	"Verify your OpenAI API key is valid and has credits",
	"Try reinstalling: deepresearch upgrade",
	"Consider using a VPN if in a restricted region",
	"Check OpenAI status: https://status.openai.com/",
}

// Check is the outcome of one step.
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

// Result holds every check in order.
type Result struct {
	Checks      []Check  `json:"checks"`
	Suggestions []string `json:"suggestions"`
}

// OK is false when any check failed.
func (r Result) OK() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}

// Completer sends the test completion.
type Completer interface {
	Generate(ctx context.Context, c agent.Completion) (agent.Result, error)
}

// Doctor runs the checks.
type Doctor struct {
	settings  config.DoctorSettings
	completer Completer
	client    *http.Client
	key       func() string
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithHTTPClient sets the client for the internet and models checks.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Doctor) { d.client = c }
}

// WithKey overrides how the API key is looked up.
func WithKey(fn func() string) Option {
	return func(d *Doctor) { d.key = fn }
}

// New returns a Doctor. A nil completer skips the completion check.
func New(settings config.DoctorSettings, completer Completer, opts ...Option) *Doctor {
	d := &Doctor{
		settings:  settings,
		completer: completer,
		client:    &http.Client{},
		key:       config.OpenAIKey,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes the checks in order, calling onCheck after each one when it
// is not nil.
func (d *Doctor) Run(ctx context.Context, onCheck func(Check)) Result {
	res := Result{Suggestions: Suggestions}
	add := func(c Check) {
		logging.L.Info("doctor check", "name", c.Name, "status", c.Status, "detail", c.Detail)
		res.Checks = append(res.Checks, c)
		if onCheck != nil {
			onCheck(c)
		}
	}
	skipRest := func(names ...string) {
		for _, n := range names {
			add(Check{Name: n, Status: StatusSkip})
		}
	}

	key := strings.TrimSpace(d.key())
	if key == "" {
		add(Check{
			Name:   CheckEnvironment,
			Status: StatusFail,
			Detail: "OPENAI_API_KEY not found",
			Hint:   "Add OPENAI_API_KEY=sk-... to a .env file in the working directory or export it.",
		})
		skipRest(CheckInternet, CheckAPI, CheckCompletion)
		return res
	}
	add(Check{Name: CheckEnvironment, Status: StatusOK, Detail: "OPENAI_API_KEY found (ending in: ..." + lastN(key, 4) + ")"})

	internet, err := d.checkInternet(ctx)
	add(internet)
	if err != nil {
		skipRest(CheckAPI, CheckCompletion)
		return res
	}

	add(d.checkAPI(ctx, key))
	add(d.checkCompletion(ctx))
	return res
}

// checkInternet returns the transport error, if any, so Run can stop; a
// non-200 answer still proves connectivity to the next steps.
func (d *Doctor) checkInternet(ctx context.Context) (Check, error) {
	c := Check{Name: CheckInternet}
	ctx, cancel := withTimeout(ctx, d.settings.InternetTimeout)
	defer cancel()

	status, _, err := d.get(ctx, d.settings.InternetURL, "")
	switch {
	case err != nil:
		c.Status = StatusFail
		c.Detail = fmt.Sprintf("Internet connection failed: %v", err)
		c.Hint = hintFor(err)
	case status != http.StatusOK:
		c.Status = StatusFail
		c.Detail = fmt.Sprintf("Internet test failed: %d", status)
	default:
		c.Status = StatusOK
		c.Detail = "Basic internet connection working"
	}
	return c, err
}

func (d *Doctor) checkAPI(ctx context.Context, key string) Check {
	c := Check{Name: CheckAPI}
	ctx, cancel := withTimeout(ctx, d.settings.APITimeout)
	defer cancel()

	status, body, err := d.get(ctx, d.settings.ModelsURL, key)
	switch {
	case err != nil:
		c.Status = StatusFail
		c.Detail = fmt.Sprintf("Connection error to OpenAI API: %v", err)
		c.Hint = hintFor(err)
	case status != http.StatusOK:
		c.Status = StatusFail
		c.Detail = fmt.Sprintf("OpenAI API test failed: %d: %s", status, truncate(strings.TrimSpace(string(body)), maxBodyInDetail))
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			c.Hint = "The key was rejected; check it is valid and has credits."
		}
	default:
		var models struct {
			Data []json.RawMessage `json:"data"`
		}
		c.Status = StatusOK
		if err := json.Unmarshal(body, &models); err != nil {
			c.Detail = "OpenAI API connection successful (could not count models)"
		} else {
			c.Detail = fmt.Sprintf("OpenAI API connection successful; available models: %d", len(models.Data))
		}
	}
	return c
}

func (d *Doctor) checkCompletion(ctx context.Context) Check {
	c := Check{Name: CheckCompletion}
	if d.completer == nil {
		c.Status = StatusSkip
		return c
	}
	res, err := d.completer.Generate(ctx, agent.Completion{
		API:        "openai",
		Model:      d.settings.TestModel,
		Prompt:     "Hello",
		MaxTokens:  10,
		HTTPClient: TimeoutClient(d.settings.ConnectTimeout, d.settings.CompletionTimeout),
	})
	if err != nil {
		c.Status = StatusFail
		c.Detail = fmt.Sprintf("Extended timeout test failed: %v", err)
		c.Hint = hintFor(err)
		if agent.IsAuthError(err) {
			c.Hint = "The key was rejected; check it is valid and has credits."
		}
		return c
	}
	c.Status = StatusOK
	c.Detail = fmt.Sprintf("OpenAI client with extended timeout successful (%s)", res.Model.Name)
	return c
}

func (d *Doctor) get(ctx context.Context, url, key string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// TimeoutClient returns an HTTP client with separate connect and overall
// timeouts.
func TimeoutClient(connect, total time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert
	tr.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = connect
	return &http.Client{Transport: tr, Timeout: total}
}

func hintFor(err error) string {
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "Try increasing the timeout or check your network speed."
	case errors.As(err, &opErr):
		return "This suggests a network/firewall issue."
	default:
		return ""
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
