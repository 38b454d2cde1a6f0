package httpclient

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/spellgate/spellgate/pkg/shared/config"
)

// Client wraps a configured Resty client used by the platform gateway.
type Client struct {
	RestyClient *resty.Client
}

// HclogAdapter adapts an hclog.Logger to be compatible with the resty log.Logger interface.
type HclogAdapter struct {
	logger hclog.Logger
}

// NewHclogAdapter creates a new adapter that will forward messages to a hclog.Logger.
func NewHclogAdapter(logger hclog.Logger) resty.Logger {
	return &HclogAdapter{logger: logger}
}

// Errorf logs a message at error level.
func (a *HclogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

// Warnf logs a message at warning level.
func (a *HclogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

// Debugf logs a message at debug level.
func (a *HclogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// New initializes a Resty client on top of a retrying HTTP transport.
// Retries are handled by go-retryablehttp so transient platform API failures
// do not surface as hard errors.
func New(logger hclog.Logger, cfg *config.Config) (*Client, error) {
	restyConfig := applyHTTPClientConfig(cfg)

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = restyConfig.RetryCount
	retryClient.RetryWaitMin = restyConfig.RetryWaitTime
	retryClient.RetryWaitMax = restyConfig.RetryMaxWaitTime
	retryClient.Logger = nil

	standardClient := retryClient.StandardClient()
	standardClient.Timeout = restyConfig.Timeout

	var proxyFunc func(*http.Request) (*url.URL, error)
	if restyConfig.Proxy != "" {
		proxyURL, err := url.Parse(restyConfig.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", restyConfig.Proxy, err)
		}
		proxyFunc = http.ProxyURL(proxyURL)
	}
	retryClient.HTTPClient.Transport = &http.Transport{
		Proxy:           proxyFunc,
		TLSClientConfig: restyConfig.TLSClientConfig,
	}

	restyClient := resty.NewWithClient(standardClient)
	restyClient.SetDebug(restyConfig.Debug)
	if logger != nil {
		restyClient.SetLogger(NewHclogAdapter(logger))
	}

	return &Client{RestyClient: restyClient}, nil
}

// applyHTTPClientConfig applies the HTTPClient configuration or uses default values.
func applyHTTPClientConfig(cfg *config.Config) config.RestyHTTPClientConfig {
	defaults := config.DefaultRestyConfig()
	if cfg == nil {
		return defaults
	}

	httpConfig := cfg.HTTPClient
	out := defaults
	out.Debug = httpConfig.Debug
	out.RetryCount = config.SetThen(httpConfig.RetryCount, defaults.RetryCount)
	out.RetryWaitTime = config.ParseDurationOr(httpConfig.RetryWaitTime, defaults.RetryWaitTime)
	out.RetryMaxWaitTime = config.ParseDurationOr(httpConfig.RetryMaxWaitTime, defaults.RetryMaxWaitTime)
	out.Timeout = config.ParseDurationOr(httpConfig.Timeout, defaults.Timeout)
	out.TLSClientConfig.InsecureSkipVerify = !config.GetBoolValue(httpConfig.TLSClientConfig, "Verify", true)

	if httpConfig.Proxy.Host != "" && httpConfig.Proxy.Port != "" {
		out.Proxy = fmt.Sprintf("%s:%s", httpConfig.Proxy.Host, httpConfig.Proxy.Port)
	}

	return out
}
