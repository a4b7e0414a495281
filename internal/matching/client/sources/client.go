// Package sources notifies the upstream donor and recipient services when
// a match completes. Calls are best effort; the caller logs and moves on.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

const defaultTimeout = 10 * time.Second

// Client calls the donor and recipient service status endpoints.
type Client struct {
	donorBaseURL     string
	recipientBaseURL string
	http             *http.Client
}

// New constructs a notifier. Either base URL may be empty, which turns the
// corresponding call into a no-op.
func New(donorBaseURL, recipientBaseURL string) *Client {
	return &Client{
		donorBaseURL:     donorBaseURL,
		recipientBaseURL: recipientBaseURL,
		http:             &http.Client{Timeout: defaultTimeout},
	}
}

// NotifyDonationCompleted flips the donation to COMPLETED upstream.
func (c *Client) NotifyDonationCompleted(ctx context.Context, donationID domain.DonationID) error {
	if c.donorBaseURL == "" {
		return nil
	}
	url := fmt.Sprintf("%s/api/v1/donations/%s/complete", c.donorBaseURL, donationID)
	return c.post(ctx, url)
}

// NotifyRequestFulfilled flips the receive request to FULFILLED upstream.
func (c *Client) NotifyRequestFulfilled(ctx context.Context, requestID domain.RequestID) error {
	if c.recipientBaseURL == "" {
		return nil
	}
	url := fmt.Sprintf("%s/api/v1/receive-requests/%s/fulfill", c.recipientBaseURL, requestID)
	return c.post(ctx, url)
}

func (c *Client) post(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "notify upstream service")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return dErrors.Newf(dErrors.CodeUnavailable, "upstream service returned %d", resp.StatusCode)
	}
	return nil
}
