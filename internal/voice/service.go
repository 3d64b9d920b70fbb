package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
	"draftwire/pkg/clients"
	"draftwire/pkg/logging"
)

// ErrProfileNotFound is a structural failure: the user has no voice
// profile, so retrying cannot help.
var ErrProfileNotFound = errors.New("voice: profile not found")

// DataService resolves a user's voice profile and workshop data.
type DataService interface {
	Profile(ctx context.Context, userID string) (models.Profile, error)
}

// HTTPService fetches profiles from the voice data API with retries on
// transient failures. 404 is terminal and maps to ErrProfileNotFound.
type HTTPService struct {
	baseURL string
	client  *http.Client
	retry   clients.RetryConfig
	logger  logging.Logger
}

func NewHTTPService(baseURL string, logger logging.Logger) *HTTPService {
	return &HTTPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		retry:   clients.DefaultRetryConfig(),
		logger:  logger,
	}
}

func (s *HTTPService) Profile(ctx context.Context, userID string) (models.Profile, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/profile", s.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Profile{}, fmt.Errorf("build profile request: %w", err)
	}

	resp, err := clients.DoWithRetry(ctx, s.client, req, s.retry)
	if err != nil {
		return models.Profile{}, bus.NewTaskError(bus.CodeUpstream, true, fmt.Errorf("fetch profile for %s: %w", userID, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.Profile{}, fmt.Errorf("user %s: %w", userID, ErrProfileNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Profile{}, bus.NewTaskError(bus.CodeUpstream, true,
			fmt.Errorf("voice data API returned %d for %s: %s", resp.StatusCode, userID, body))
	}

	var profile models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return models.Profile{}, fmt.Errorf("decode profile for %s: %w", userID, err)
	}
	return profile, nil
}
