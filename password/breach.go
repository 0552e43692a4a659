package password

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBreachTimeout = 10 * time.Second

// BreachConfig configures the compromised-password lookup. An empty
// Endpoint disables the check entirely.
type BreachConfig struct {
	// Endpoint is the base URL of a pwnedpasswords-compatible range API,
	// e.g. "https://api.pwnedpasswords.com". The client appends
	// "/range/{prefix}".
	Endpoint string
	// APIKey is sent as the hibp-api-key header when non-empty.
	APIKey  string
	Timeout time.Duration
}

// BreachClient queries an external breach-password service using the
// k-anonymity range scheme: only the first five characters of the
// password's SHA-1 digest are transmitted, and the digest suffix is matched
// locally against the returned candidate set.
//
// Lookups fail open: a network or service failure is reported as
// not-compromised so that registration is never blocked by an outage.
type BreachClient struct {
	cfg    BreachConfig
	client *http.Client
	logger *logrus.Logger
}

// NewBreachClient builds a client for the configured endpoint. The logger
// records fail-open degradations; a nil logger disables that reporting.
func NewBreachClient(cfg BreachConfig, logger *logrus.Logger) *BreachClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultBreachTimeout
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return &BreachClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Enabled reports whether a lookup endpoint is configured.
func (c *BreachClient) Enabled() bool {
	return c != nil && c.cfg.Endpoint != ""
}

// IsCompromised reports whether the password appears in the breach corpus.
// The check is advisory: any failure to reach or parse the service yields
// false after logging the degradation.
func (c *BreachClient) IsCompromised(ctx context.Context, pw string) bool {
	if !c.Enabled() {
		return false
	}

	sum := sha1.Sum([]byte(pw))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	url := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/range/" + prefix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.degraded(err)
		return false
	}
	req.Header.Set("Add-Padding", "true")
	if c.cfg.APIKey != "" {
		req.Header.Set("hibp-api-key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.degraded(err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).
			Warn("breach check degraded: unexpected service status")
		return false
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		candidate, count, _ := strings.Cut(scanner.Text(), ":")
		// Padding rows carry a zero count and are not real breach entries.
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			continue
		}
		if strings.EqualFold(candidate, suffix) {
			return true
		}
	}
	if err := scanner.Err(); err != nil {
		c.degraded(err)
	}
	return false
}

func (c *BreachClient) degraded(err error) {
	c.logger.WithError(err).Warn("breach check degraded: treating password as not compromised")
}
