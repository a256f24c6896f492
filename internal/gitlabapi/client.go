// Package gitlabapi implements platform.Platform against the GitLab REST API v4.
package gitlabapi

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/temirov/glmigrate/internal/platform"
)

const (
	baseURLFieldNameConstant          = "url"
	tokenFieldNameConstant            = "token"
	certificateFieldNameConstant      = "certificate"
	requiredValueMessageConstant      = "value required"
	certificatePairMessageConstant    = "certificate and key must be provided together"
	certificateLoadErrorTemplate      = "unable to load client certificate: %w"
	clientCreationErrorTemplate       = "unable to construct GitLab client: %w"
	invalidInputTemplateConstant      = "%s: %s"
	defaultPageSizeConstant           = 100
	defaultRequestTimeoutConstant     = 60 * time.Second
	defaultExportPollIntervalConstant = 5 * time.Second
	defaultExportTimeoutConstant      = 30 * time.Minute
	defaultRetryMaxConstant           = 3
	rateLimiterBurstConstant          = 1
)

// InvalidInputError describes a rejected client configuration value.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// TransportSettings tunes HTTP behaviour shared by both instances.
type TransportSettings struct {
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	RetryMax           int           `mapstructure:"retry_max"`
	ExportPollInterval time.Duration `mapstructure:"export_poll_interval"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout"`
}

// DefaultTransportSettings returns the baseline transport tuning.
func DefaultTransportSettings() TransportSettings {
	return TransportSettings{
		RequestTimeout:     defaultRequestTimeoutConstant,
		RetryMax:           defaultRetryMaxConstant,
		ExportPollInterval: defaultExportPollIntervalConstant,
		ExportTimeout:      defaultExportTimeoutConstant,
	}
}

func (settings TransportSettings) withDefaults() TransportSettings {
	defaults := DefaultTransportSettings()
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = defaults.RequestTimeout
	}
	if settings.RetryMax < 0 {
		settings.RetryMax = 0
	}
	if settings.ExportPollInterval <= 0 {
		settings.ExportPollInterval = defaults.ExportPollInterval
	}
	if settings.ExportTimeout <= 0 {
		settings.ExportTimeout = defaults.ExportTimeout
	}
	return settings
}

// ClientConfiguration identifies one GitLab instance and how to reach it.
type ClientConfiguration struct {
	BaseURL         string
	Token           string
	CertificatePath string
	KeyPath         string
	Transport       TransportSettings
}

// Client is a platform.Platform backed by go-gitlab. It is safe for concurrent use.
type Client struct {
	logger             *zap.Logger
	api                *gitlab.Client
	exportPollInterval time.Duration
	exportTimeout      time.Duration
}

var _ platform.Platform = (*Client)(nil)

// NewClient validates the configuration and constructs a Client.
func NewClient(configuration ClientConfiguration, logger *zap.Logger) (*Client, error) {
	if len(strings.TrimSpace(configuration.BaseURL)) == 0 {
		return nil, InvalidInputError{FieldName: baseURLFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(configuration.Token)) == 0 {
		return nil, InvalidInputError{FieldName: tokenFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := configuration.Transport.withDefaults()
	httpClient, httpClientError := newHTTPClient(configuration, settings)
	if httpClientError != nil {
		return nil, httpClientError
	}

	limit := rate.Inf
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}

	api, apiError := gitlab.NewClient(
		configuration.Token,
		gitlab.WithBaseURL(strings.TrimSpace(configuration.BaseURL)),
		gitlab.WithHTTPClient(httpClient),
		gitlab.WithCustomRetryMax(settings.RetryMax),
		gitlab.WithCustomLimiter(rate.NewLimiter(limit, rateLimiterBurstConstant)),
	)
	if apiError != nil {
		return nil, fmt.Errorf(clientCreationErrorTemplate, apiError)
	}

	return &Client{
		logger:             logger,
		api:                api,
		exportPollInterval: settings.ExportPollInterval,
		exportTimeout:      settings.ExportTimeout,
	}, nil
}

func newHTTPClient(configuration ClientConfiguration, settings TransportSettings) (*http.Client, error) {
	certificatePath := strings.TrimSpace(configuration.CertificatePath)
	keyPath := strings.TrimSpace(configuration.KeyPath)
	if (len(certificatePath) == 0) != (len(keyPath) == 0) {
		return nil, InvalidInputError{FieldName: certificateFieldNameConstant, Message: certificatePairMessageConstant}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if len(certificatePath) > 0 {
		certificate, loadError := tls.LoadX509KeyPair(certificatePath, keyPath)
		if loadError != nil {
			return nil, fmt.Errorf(certificateLoadErrorTemplate, loadError)
		}
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{certificate},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return &http.Client{Transport: transport, Timeout: settings.RequestTimeout}, nil
}

// classify maps a go-gitlab failure onto the platform error taxonomy.
func classify(operation platform.OperationName, response *gitlab.Response, cause error) error {
	if cause == nil {
		return nil
	}
	statusCode := 0
	if response != nil && response.Response != nil {
		statusCode = response.StatusCode
	}
	var errorResponse *gitlab.ErrorResponse
	if statusCode == 0 && errors.As(cause, &errorResponse) && errorResponse.Response != nil {
		statusCode = errorResponse.Response.StatusCode
	}
	return platform.ClassifyStatus(operation, statusCode, cause)
}

// collectPages follows GitLab pagination until the last page.
func collectPages[T any](fetch func(page int) ([]T, *gitlab.Response, error)) ([]T, *gitlab.Response, error) {
	var collected []T
	page := 1
	for {
		items, response, fetchError := fetch(page)
		if fetchError != nil {
			return nil, response, fetchError
		}
		collected = append(collected, items...)
		if response == nil || response.NextPage == 0 {
			return collected, response, nil
		}
		page = response.NextPage
	}
}

func listOptions(page int) gitlab.ListOptions {
	return gitlab.ListOptions{Page: page, PerPage: defaultPageSizeConstant}
}

func timeValue(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}
