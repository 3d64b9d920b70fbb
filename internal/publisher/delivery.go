package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"draftwire/internal/models"
	"draftwire/pkg/logging"
)

// ErrMissingCredentials is a terminal delivery failure: retrying cannot
// conjure a credential.
var ErrMissingCredentials = errors.New("publisher: missing platform credentials")

// PostResult is the platform's acknowledgment of a published post.
type PostResult struct {
	PostID string `json:"post_id"`
	URL    string `json:"url"`
}

// PlatformClient delivers formatted content to one external platform.
type PlatformClient interface {
	Publish(ctx context.Context, userID, platform, content string) (PostResult, error)
}

// CredentialSource resolves a user's token for a platform.
type CredentialSource interface {
	Credential(userID, platform string) (string, error)
}

// StaticCredentials serves tokens from a fixed map keyed by platform.
// Suitable for single-tenant deployments and tests.
type StaticCredentials map[string]string

func (c StaticCredentials) Credential(_ string, platform string) (string, error) {
	token, ok := c[platform]
	if !ok || token == "" {
		return "", fmt.Errorf("platform %s: %w", platform, ErrMissingCredentials)
	}
	return token, nil
}

// deliveryError wraps a failed platform response with its status code so
// the retry policy can classify it.
type deliveryError struct {
	status int
	body   string
}

func (e *deliveryError) Error() string {
	return fmt.Sprintf("platform returned %d: %s", e.status, e.body)
}

// retryableDelivery classifies transient failures: 429, 5xx, and
// connection-level errors. Everything else, credentials included, is
// terminal.
func retryableDelivery(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredentials) {
		return false
	}
	var de *deliveryError
	if errors.As(err, &de) {
		return de.status == http.StatusTooManyRequests || de.status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Connection reset and truncated responses surface as raw EOFs.
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Deliverer wraps a PlatformClient with bounded exponential-backoff
// retries for transient failures.
type Deliverer struct {
	client PlatformClient
	retry  retrypolicy.RetryPolicy[PostResult]
	logger logging.Logger
}

func NewDeliverer(client PlatformClient, logger logging.Logger) *Deliverer {
	retry := retrypolicy.NewBuilder[PostResult]().
		HandleIf(func(_ PostResult, err error) bool { return retryableDelivery(err) }).
		WithBackoff(500*time.Millisecond, 10*time.Second).
		WithMaxRetries(3).
		WithJitterFactor(0.1).
		Build()
	return &Deliverer{client: client, retry: retry, logger: logger}
}

// Deliver publishes the draft's formatted content, retrying transient
// failures. The returned PublishResult records the outcome either way.
func (d *Deliverer) Deliver(ctx context.Context, draft models.Draft, platform Platform) (models.PublishResult, error) {
	formatted := Format(draft.Content, platform)

	post, err := failsafe.With(d.retry).WithContext(ctx).Get(func() (PostResult, error) {
		return d.client.Publish(ctx, draft.UserID, platform.Name, formatted)
	})

	result := models.PublishResult{
		ContentID:   draft.ID,
		UserID:      draft.UserID,
		Platform:    platform.Name,
		PublishedAt: time.Now().UTC(),
	}
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result, err
	}

	result.Status = "published"
	result.ExternalID = post.PostID
	result.URL = post.URL
	return result, nil
}

// HTTPPlatformClient posts to each platform's publishing endpoint.
type HTTPPlatformClient struct {
	endpoints   map[string]string
	credentials CredentialSource
	client      *http.Client
}

func NewHTTPPlatformClient(endpoints map[string]string, credentials CredentialSource) *HTTPPlatformClient {
	return &HTTPPlatformClient{
		endpoints:   endpoints,
		credentials: credentials,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPPlatformClient) Publish(ctx context.Context, userID, platform, content string) (PostResult, error) {
	token, err := c.credentials.Credential(userID, platform)
	if err != nil {
		return PostResult{}, err
	}
	endpoint, ok := c.endpoints[platform]
	if !ok {
		return PostResult{}, fmt.Errorf("no endpoint configured for platform %s", platform)
	}

	payload, err := json.Marshal(map[string]string{"user_id": userID, "content": content})
	if err != nil {
		return PostResult{}, fmt.Errorf("marshal publish payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return PostResult{}, fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return PostResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PostResult{}, &deliveryError{status: resp.StatusCode, body: string(body)}
	}

	var post PostResult
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return PostResult{}, fmt.Errorf("decode publish response: %w", err)
	}
	return post, nil
}
