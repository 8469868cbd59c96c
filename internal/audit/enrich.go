package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Enricher resolves an IP address for events that carry none.
type Enricher interface {
	LookupIP(ctx context.Context) (string, error)
}

// IPLookup asks an ipify-style endpoint for the public address of this process and
// caches the answer for TTL.
type IPLookup struct {
	URL    string
	Client *http.Client
	TTL    time.Duration

	mu      sync.Mutex
	cached  string
	expires time.Time
	now     func() time.Time
}

func NewIPLookup(url string) *IPLookup {
	return &IPLookup{URL: url, Client: &http.Client{}, TTL: 10 * time.Minute, now: time.Now}
}

func (l *IPLookup) LookupIP(ctx context.Context) (string, error) {
	if l.URL == "" {
		return "", errors.New("audit: ip lookup url not configured")
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}

	l.mu.Lock()
	if l.cached != "" && now().Before(l.expires) {
		ip := l.cached
		l.mu.Unlock()
		return ip, nil
	}
	l.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return "", err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("audit: ip lookup status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", err
	}
	ip := parseLookupBody(body)
	if ip == "" {
		return "", errors.New("audit: ip lookup returned no address")
	}

	l.mu.Lock()
	l.cached = ip
	l.expires = now().Add(l.TTL)
	l.mu.Unlock()
	return ip, nil
}

// parseLookupBody accepts {"ip":"..."} or a bare address.
func parseLookupBody(body []byte) string {
	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return strings.TrimSpace(payload.IP)
	}
	return strings.TrimSpace(string(body))
}
