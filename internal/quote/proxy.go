package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"stockverse/internal/logger"
)

const (
	maxBodyBytes   = 8 << 20
	maxDetailBytes = 2048
)

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	UserAgent       string
	DefaultInterval string
	DefaultRange    string
	// Aliases maps friendly names to provider tickers, e.g. SPX -> ^GSPC.
	Aliases map[string]string
}

// Proxy forwards chart requests to the upstream quote provider. One attempt
// per call; failures come back as *Error.
type Proxy struct {
	cfg     Config
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

func NewProxy(cfg Config, log logrus.FieldLogger) (*Proxy, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DefaultInterval == "" {
		cfg.DefaultInterval = "1m"
	}
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = "1d"
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", cfg.BaseURL)
	}
	aliases := make(map[string]string, len(cfg.Aliases))
	for k, v := range cfg.Aliases {
		aliases[strings.ToUpper(k)] = v
	}
	cfg.Aliases = aliases

	return &Proxy{
		cfg:     cfg,
		baseURL: strings.TrimRight(u.String(), "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logger.Component(log, "quote"),
	}, nil
}

func (p *Proxy) providerSymbol(symbol string) string {
	if mapped, ok := p.cfg.Aliases[strings.ToUpper(symbol)]; ok {
		return mapped
	}
	return symbol
}

// FetchQuote returns the upstream chart payload for symbol unmodified.
// Unknown interval or range values are replaced by the configured defaults.
func (p *Proxy) FetchQuote(ctx context.Context, symbol, interval, rng string) (json.RawMessage, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, &Error{Kind: KindInvalidParameter, Err: errors.New("symbol is required")}
	}
	entry := p.log.WithField("symbol", symbol)

	iv, ok := normalizeParam(interval, p.cfg.DefaultInterval, validIntervals)
	if !ok {
		entry.WithField("interval", interval).Debug("unsupported interval, using default")
	}
	rg, ok := normalizeParam(rng, p.cfg.DefaultRange, validRanges)
	if !ok {
		entry.WithField("range", rng).Debug("unsupported range, using default")
	}

	u, err := url.Parse(fmt.Sprintf("%s/v8/finance/chart/%s", p.baseURL, url.PathEscape(p.providerSymbol(symbol))))
	if err != nil {
		return nil, &Error{Kind: KindInternal, Symbol: symbol, Err: fmt.Errorf("build url: %w", err)}
	}
	q := u.Query()
	q.Set("interval", iv)
	q.Set("range", rg)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Symbol: symbol, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	entry = entry.WithFields(logrus.Fields{"interval": iv, "range": rg})
	entry.Debug("fetching upstream chart")

	resp, err := p.client.Do(req)
	if err != nil {
		qe := transportError(symbol, err)
		entry.WithError(err).WithField("kind", qe.Kind.String()).Warn("upstream request failed")
		return nil, qe
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		qe := transportError(symbol, err)
		entry.WithError(err).WithField("kind", qe.Kind.String()).Warn("read upstream body failed")
		return nil, qe
	}
	entry = entry.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode != http.StatusOK {
		entry.WithField("body", truncate(string(body), 300)).Warn("upstream returned error status")
		return nil, &Error{Kind: KindUpstream, Symbol: symbol, Upstream: resp.StatusCode, Body: truncate(string(body), maxDetailBytes)}
	}
	if len(body) > maxBodyBytes {
		entry.Error("upstream payload too large")
		return nil, &Error{Kind: KindInternal, Symbol: symbol, Err: errors.New("upstream payload too large")}
	}
	if !gjson.ValidBytes(body) {
		entry.Error("upstream returned invalid json")
		return nil, &Error{Kind: KindInternal, Symbol: symbol, Err: errors.New("upstream returned invalid json")}
	}
	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() {
		entry.WithField("upstream_error", desc.String()).Info("upstream reported chart error")
	}

	entry.Info("upstream chart fetched")
	return json.RawMessage(body), nil
}

func transportError(symbol string, err error) *Error {
	if isTimeout(err) {
		return &Error{Kind: KindGatewayTimeout, Symbol: symbol, Err: err}
	}
	return &Error{Kind: KindBadGateway, Symbol: symbol, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
