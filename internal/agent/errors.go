package agent

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
)

// retryPlan is what Generate does after a failed attempt. A zero Prompt or
// Model keeps the current one.
type retryPlan struct {
	Retry  bool
	Prompt string
	Model  string
	Err    errs.Error
}

// planRetry classifies a failed request against mod. Only provider errors
// are ever retried.
func (s *Service) planRetry(err error, mod config.Model, prompt string) retryPlan {
	var perr *fantasy.ProviderError
	if !errors.As(err, &perr) {
		return retryPlan{Err: errs.Error{Err: err, Reason: fmt.Sprintf("The %s API request failed.", mod.API)}}
	}

	switch {
	case perr.StatusCode == http.StatusNotFound && mod.Fallback != "":
		return retryPlan{
			Retry: true,
			Model: mod.Fallback,
			Err:   errs.Error{Err: perr, Reason: statusReason(perr, mod.API+" API server error.")},
		}
	case perr.StatusCode == http.StatusNotFound:
		return retryPlan{Err: errs.Error{Err: perr, Reason: fmt.Sprintf("Model %q is not served by API %q.", mod.Name, mod.API)}}
	case perr.StatusCode == http.StatusBadRequest && contextOverflow(perr):
		plan := retryPlan{Err: errs.Error{Err: perr, Reason: "The prompt is larger than the model's context window."}}
		if !s.cfg.NoLimit {
			plan.Retry = true
			plan.Prompt = shrinkPrompt(perr.Error(), prompt)
		}
		return plan
	case perr.StatusCode == http.StatusBadRequest:
		return retryPlan{Err: errs.Error{Err: perr, Reason: statusReason(perr, mod.API+" API rejected the request.")}}
	case perr.IsRetryable():
		return retryPlan{Retry: true, Err: errs.Error{Err: perr, Reason: statusReason(perr, "Temporary API error.")}}
	default:
		return retryPlan{Err: errs.Error{Err: perr, Reason: statusReason(perr, mod.API+" API rejected the request.")}}
	}
}

func statusReason(perr *fantasy.ProviderError, fallback string) string {
	if title := fantasy.ErrorTitleForStatusCode(perr.StatusCode); title != "" {
		return title
	}
	return fallback
}

func contextOverflow(perr *fantasy.ProviderError) bool {
	const code = "context_length_exceeded"
	return strings.Contains(strings.ToLower(perr.Message), code) ||
		strings.Contains(strings.ToLower(string(perr.ResponseBody)), code)
}

var overflowRe = regexp.MustCompile(`maximum context length is (\d+) tokens\. However, your messages resulted in (\d+) tokens`)

// charsPerToken is the rough size of one token in English text.
const charsPerToken = 4

// shrinkPrompt trims the tail of prompt by the overflow the provider
// reported, plus a small margin. Prompts are returned untouched when the
// message cannot be parsed or the numbers make no sense.
func shrinkPrompt(msg, prompt string) string {
	m := overflowRe.FindStringSubmatch(msg)
	if m == nil {
		return prompt
	}
	limit, _ := strconv.Atoi(m[1])
	used, _ := strconv.Atoi(m[2])
	if used <= limit {
		return prompt
	}
	cut := (used-limit)*charsPerToken + 10 //nolint:mnd
	if cut >= len(prompt) {
		return prompt
	}
	return prompt[:len(prompt)-cut]
}
