package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/config"
)

type fakeCompleter struct {
	err  error
	got  agent.Completion
	seen bool
}

func (f *fakeCompleter) Generate(_ context.Context, c agent.Completion) (agent.Result, error) {
	f.got = c
	f.seen = true
	if f.err != nil {
		return agent.Result{}, f.err
	}
	return agent.Result{Text: "Hi", Model: config.Model{Name: c.Model}}, nil
}

func servers(t *testing.T, modelsStatus int, modelsBody string) (internet, models *httptest.Server) {
	t.Helper()
	internet = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	models = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test-abcd1234", r.Header.Get("Authorization"))
		w.WriteHeader(modelsStatus)
		_, _ = w.Write([]byte(modelsBody))
	}))
	t.Cleanup(internet.Close)
	t.Cleanup(models.Close)
	return internet, models
}

func settings(internet, models string) config.DoctorSettings {
	return config.DoctorSettings{
		InternetURL:       internet,
		ModelsURL:         models,
		TestModel:         "gpt-3.5-turbo",
		InternetTimeout:   5 * time.Second,
		APITimeout:        5 * time.Second,
		CompletionTimeout: 5 * time.Second,
		ConnectTimeout:    time.Second,
	}
}

func statuses(r Result) []Status {
	out := make([]Status, 0, len(r.Checks))
	for _, c := range r.Checks {
		out = append(out, c.Status)
	}
	return out
}

func withKey(k string) Option {
	return WithKey(func() string { return k })
}

func TestRun(t *testing.T) {
	t.Run("all good", func(t *testing.T) {
		internet, models := servers(t, http.StatusOK, `{"data":[{"id":"a"},{"id":"b"}]}`)
		completer := &fakeCompleter{}
		d := New(settings(internet.URL, models.URL), completer, withKey("sk-test-abcd1234"))

		var seen []string
		res := d.Run(context.Background(), func(c Check) { seen = append(seen, c.Name) })
		require.True(t, res.OK())
		require.Equal(t, []Status{StatusOK, StatusOK, StatusOK, StatusOK}, statuses(res))
		require.Equal(t, []string{CheckEnvironment, CheckInternet, CheckAPI, CheckCompletion}, seen)
		require.Contains(t, res.Checks[0].Detail, "...1234")
		require.NotContains(t, res.Checks[0].Detail, "sk-test")
		require.Contains(t, res.Checks[2].Detail, "available models: 2")
		require.Equal(t, Suggestions, res.Suggestions)

		require.Equal(t, "openai", completer.got.API)
		require.Equal(t, "gpt-3.5-turbo", completer.got.Model)
		require.Equal(t, "Hello", completer.got.Prompt)
		require.EqualValues(t, 10, completer.got.MaxTokens)
		require.NotNil(t, completer.got.HTTPClient)
		require.Equal(t, 5*time.Second, completer.got.HTTPClient.Timeout)
	})

	t.Run("missing key", func(t *testing.T) {
		completer := &fakeCompleter{}
		d := New(settings("http://127.0.0.1:1", "http://127.0.0.1:1"), completer, withKey(""))
		res := d.Run(context.Background(), nil)
		require.False(t, res.OK())
		require.Equal(t, []Status{StatusFail, StatusSkip, StatusSkip, StatusSkip}, statuses(res))
		require.NotEmpty(t, res.Checks[0].Hint)
		require.False(t, completer.seen)
		require.NotEmpty(t, res.Suggestions)
	})

	t.Run("rejected key", func(t *testing.T) {
		internet, models := servers(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`)
		completer := &fakeCompleter{err: errors.New("401 unauthorized")}
		d := New(settings(internet.URL, models.URL), completer, withKey("sk-test-abcd1234"))
		res := d.Run(context.Background(), nil)
		require.False(t, res.OK())
		require.Equal(t, []Status{StatusOK, StatusOK, StatusFail, StatusFail}, statuses(res))
		require.Contains(t, res.Checks[2].Detail, "401")
		require.Contains(t, res.Checks[2].Detail, "Incorrect API key")
		require.NotEmpty(t, res.Checks[2].Hint)
		require.True(t, completer.seen)
	})

	t.Run("no network", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		completer := &fakeCompleter{}
		d := New(settings(url, url), completer, withKey("sk-test-abcd1234"))
		res := d.Run(context.Background(), nil)
		require.False(t, res.OK())
		require.Equal(t, []Status{StatusOK, StatusFail, StatusSkip, StatusSkip}, statuses(res))
		require.Contains(t, res.Checks[1].Detail, "Internet connection failed")
		require.Equal(t, "This suggests a network/firewall issue.", res.Checks[1].Hint)
		require.False(t, completer.seen)
	})

	t.Run("internet non-200 continues", func(t *testing.T) {
		internet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(internet.Close)
		_, models := servers(t, http.StatusOK, `{"data":[]}`)
		d := New(settings(internet.URL, models.URL), &fakeCompleter{}, withKey("sk-test-abcd1234"))
		res := d.Run(context.Background(), nil)
		require.Equal(t, []Status{StatusOK, StatusFail, StatusOK, StatusOK}, statuses(res))
		require.Contains(t, res.Checks[1].Detail, "502")
	})

	t.Run("no completer", func(t *testing.T) {
		internet, models := servers(t, http.StatusOK, `{"data":[]}`)
		d := New(settings(internet.URL, models.URL), nil, withKey("sk-test-abcd1234"))
		res := d.Run(context.Background(), nil)
		require.True(t, res.OK())
		require.Equal(t, StatusSkip, res.Checks[3].Status)
	})

	t.Run("slow api", func(t *testing.T) {
		internet, _ := servers(t, http.StatusOK, "")
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(slow.Close)
		s := settings(internet.URL, slow.URL)
		s.APITimeout = 50 * time.Millisecond
		d := New(s, &fakeCompleter{}, withKey("sk-test-abcd1234"))
		res := d.Run(context.Background(), nil)
		require.Equal(t, StatusFail, res.Checks[2].Status)
		require.Equal(t, "Try increasing the timeout or check your network speed.", res.Checks[2].Hint)
	})
}

func TestTimeoutClient(t *testing.T) {
	c := TimeoutClient(30*time.Second, 60*time.Second)
	require.Equal(t, 60*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	require.Equal(t, 30*time.Second, tr.TLSHandshakeTimeout)
}

func TestHintFor(t *testing.T) {
	require.NotEmpty(t, hintFor(context.DeadlineExceeded))
	require.Empty(t, hintFor(errors.New("other")))
}

func TestLastN(t *testing.T) {
	require.Equal(t, "1234", lastN("sk-abc1234", 4))
	require.Equal(t, "ab", lastN("ab", 4))
}
