package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/donormap/internal/domain"
)

// IPLookup resolves an approximate position for a client IP through an
// ipapi-style JSON endpoint: GET {baseURL}/{ip}/json.
type IPLookup struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewIPLookup(baseURL string, timeout time.Duration) *IPLookup {
	return &IPLookup{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

// For returns a Provider bound to the given client address. remoteAddr may
// carry a port.
func (l *IPLookup) For(remoteAddr string) Provider {
	return ProviderFunc(func(ctx context.Context) (domain.Position, error) {
		return l.lookup(ctx, remoteAddr)
	})
}

func (l *IPLookup) lookup(ctx context.Context, remoteAddr string) (domain.Position, error) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return domain.Position{}, fmt.Errorf("%w: invalid client address %q", ErrPositionUnavailable, remoteAddr)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return domain.Position{}, fmt.Errorf("%w: non-routable client address %s", ErrPositionUnavailable, ip)
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+ip.String()+"/json", nil)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: failed to create request: %w", ErrPositionUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: failed to call lookup service: %w", ErrPositionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Position{}, fmt.Errorf("%w: lookup service returned status %d", ErrPositionUnavailable, resp.StatusCode)
	}

	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Error     bool     `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Position{}, fmt.Errorf("%w: failed to decode response: %w", ErrPositionUnavailable, err)
	}
	if body.Error || body.Latitude == nil || body.Longitude == nil {
		return domain.Position{}, fmt.Errorf("%w: lookup service has no position for %s", ErrPositionUnavailable, ip)
	}

	pos := domain.Position{Latitude: *body.Latitude, Longitude: *body.Longitude}
	if !pos.Valid() {
		return domain.Position{}, fmt.Errorf("%w: lookup service returned out-of-range position", ErrPositionUnavailable)
	}
	return pos, nil
}
