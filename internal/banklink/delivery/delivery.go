// Package delivery fires the optional server-to-server result callbacks.
package delivery

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/banklabs/banklink/internal/banklink/domain"
)

const maxResponseBytes = 100 * 1024 * 1024

var localhostRe = regexp.MustCompile(`^(localhost|127\.0\.0\.1)$`)

// IsLocalTarget reports whether the URL points at localhost; automatic
// callbacks to local targets are refused, matching merchant expectations in
// the test environment.
func IsLocalTarget(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return localhostRe.MatchString(strings.ToLower(strings.TrimSpace(parsed.Hostname())))
}

type Deliverer struct {
	client    *http.Client
	userAgent string
}

func NewDeliverer(timeout time.Duration, hostname string) *Deliverer {
	return &Deliverer{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: hostname + " (automated test payments)",
	}
}

// Deliver performs one request and reports the outcome. Failures are data,
// not errors: the caller records them on the payment and moves on.
func (d *Deliverer) Deliver(ctx context.Context, method, rawURL, payload string) *domain.CallbackResult {
	result := &domain.CallbackResult{Attempted: true}

	var body io.Reader
	if method == http.MethodPost && payload != "" {
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("User-Agent", d.userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	result.StatusCode = resp.StatusCode
	result.Body = string(raw)
	return result
}
