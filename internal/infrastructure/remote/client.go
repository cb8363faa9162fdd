// Package remote mirrors the dataset document to a private hosted gist.
//
// The whole document is stored as one JSON file in the gist. Every call is
// bounded by a timeout and passes through a circuit breaker that only counts
// network failures; credential and not-found answers never trip it.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
)

const gistDescription = "bytepad data"

// Client talks to the hosted gist API.
type Client struct {
	apiBaseURL *url.URL
	httpClient *http.Client
	fileName   string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a client from the remote configuration.
func NewClient(cfg config.Remote, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("remote")

	c := &Client{
		httpClient: &http.Client{},
		fileName:   cfg.FileName,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
	if c.fileName == "" {
		c.fileName = "bytepad-data.json"
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}

	if cfg.APIBaseURL != "" {
		base := cfg.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid remote API URL %q: %w", cfg.APIBaseURL, err)
		}
		c.apiBaseURL = u
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-mirror",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsNetwork(err)
		},
	})

	return c, nil
}

// FileName returns the name of the data file inside the gist.
func (c *Client) FileName() string {
	return c.fileName
}

// ValidateCredential checks that the token is accepted by the API.
func (c *Client) ValidateCredential(ctx context.Context, token string) error {
	return c.call(ctx, "validate_credential", func(ctx context.Context) error {
		_, _, err := c.github(token).Users.Get(ctx, "")
		return err
	})
}

// ValidateRemoteAccessible checks that the gist exists and is readable with
// the token.
func (c *Client) ValidateRemoteAccessible(ctx context.Context, token, gistID string) error {
	return c.call(ctx, "validate_remote", func(ctx context.Context) error {
		_, _, err := c.github(token).Gists.Get(ctx, gistID)
		return err
	})
}

// Create stores doc in a new private gist and returns its id.
func (c *Client) Create(ctx context.Context, token string, doc *domain.Document) (string, error) {
	content, err := encode(doc)
	if err != nil {
		return "", err
	}

	var id string
	err = c.call(ctx, "create", func(ctx context.Context) error {
		gist, _, err := c.github(token).Gists.Create(ctx, &github.Gist{
			Description: github.String(gistDescription),
			Public:      github.Bool(false),
			Files: map[github.GistFilename]github.GistFile{
				github.GistFilename(c.fileName): {Content: github.String(content)},
			},
		})
		if err != nil {
			return err
		}
		id = gist.GetID()
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("Created remote copy", zap.String("gist_id", id), zap.Int("items", doc.TotalItems()))
	return id, nil
}

// Read fetches and decodes the document stored in the gist.
func (c *Client) Read(ctx context.Context, token, gistID string) (*domain.Document, error) {
	var content string
	err := c.call(ctx, "read", func(ctx context.Context) error {
		gist, _, err := c.github(token).Gists.Get(ctx, gistID)
		if err != nil {
			return err
		}
		file, ok := gist.Files[github.GistFilename(c.fileName)]
		if !ok {
			return apperrors.NotFound(apperrors.CodeRemoteNotFound, "Remote copy has no data file").
				WithResource(gistID).
				WithDetails(c.fileName).
				Build()
		}
		content = file.GetContent()
		if truncated(file, content) && file.GetRawURL() != "" {
			content, err = c.fetchRaw(ctx, token, file.GetRawURL())
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, apperrors.Validation(apperrors.CodeRemoteBadPayload, "Remote copy is not a valid document").
			WithResource(gistID).
			WithCause(err).
			Build()
	}
	doc.Normalize()
	return &doc, nil
}

// Write replaces the document stored in the gist. The whole content is sent
// in a single request.
func (c *Client) Write(ctx context.Context, token, gistID string, doc *domain.Document) error {
	content, err := encode(doc)
	if err != nil {
		return err
	}
	return c.call(ctx, "write", func(ctx context.Context) error {
		_, _, err := c.github(token).Gists.Edit(ctx, gistID, &github.Gist{
			Files: map[github.GistFilename]github.GistFile{
				github.GistFilename(c.fileName): {Content: github.String(content)},
			},
		})
		return err
	})
}

func (c *Client) github(token string) *github.Client {
	gh := github.NewClient(c.httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if c.apiBaseURL != nil {
		gh.BaseURL = c.apiBaseURL
	}
	return gh
}

// truncated reports whether the API returned only part of the file. The gist
// API cuts inline content at about a megabyte and leaves size at the full length.
func truncated(file github.GistFile, content string) bool {
	if content == "" {
		return true
	}
	if size := file.GetSize(); size > 0 && len(content) < size {
		return true
	}
	return !json.Valid([]byte(content))
}

// fetchRaw downloads a truncated file through its raw URL.
func (c *Client) fetchRaw(ctx context.Context, token, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &github.ErrorResponse{Response: resp, Message: "raw content request failed"}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// call runs fn with the per-call timeout inside the circuit breaker and
// classifies any error.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, classify(ctx, fn(ctx))
	})
	if err != nil {
		err = classify(ctx, err)
		c.logger.Debug("Remote call failed",
			zap.String("operation", op),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Remote call succeeded",
		zap.String("operation", op),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// classify maps transport and API errors to the unified error types.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Network(apperrors.CodeRemoteUnavailable, "Remote temporarily disabled after repeated failures").
			WithCause(err).
			Build()
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return apperrors.Network(apperrors.CodeRemoteUnavailable, "Remote rate limit exceeded").
			WithCause(err).
			Build()
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return apperrors.Auth(apperrors.CodeRemoteAuthFailed, "Remote rejected the credential").
				WithCause(err).
				WithDetails(respErr.Message).
				Build()
		case status == http.StatusNotFound:
			return apperrors.NotFound(apperrors.CodeRemoteNotFound, "Remote copy not found").
				WithCause(err).
				Build()
		case status == http.StatusUnprocessableEntity:
			return apperrors.Validation(apperrors.CodeRemoteBadPayload, "Remote rejected the payload").
				WithCause(err).
				WithDetails(respErr.Message).
				Build()
		default:
			return apperrors.Network(apperrors.CodeRemoteUnavailable, fmt.Sprintf("Remote answered %d", status)).
				WithCause(err).
				Build()
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Timeout(apperrors.CodeRemoteTimeout, "Remote did not answer in time").
			WithCause(err).
			Build()
	}

	return apperrors.Network(apperrors.CodeRemoteUnavailable, "Remote unreachable").
		WithCause(err).
		Build()
}

func encode(doc *domain.Document) (string, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(err, "encode document")
	}
	return string(raw), nil
}
