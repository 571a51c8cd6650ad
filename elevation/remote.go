package elevation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/context/ctxhttp"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultEndpoint = "https://epqs.nationalmap.gov/v1/json"
	DefaultTimeout  = 10 * time.Second

	remoteLabel = "usgs"
)

// RemoteSource queries the USGS Elevation Point Query Service one coordinate at a time. Every valid answer is stored
// in its Cache, so a coordinate is only ever requested once per cache file. Concurrent lookups of the same key share
// one request.
type RemoteSource struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	cache    Cache
	group    singleflight.Group
	log      *slog.Logger
}

type RemoteOption func(*RemoteSource)

func WithEndpoint(endpoint string) RemoteOption {
	return func(s *RemoteSource) { s.endpoint = endpoint }
}

func WithHTTPClient(client *http.Client) RemoteOption {
	return func(s *RemoteSource) { s.client = client }
}

// WithTimeout sets the per-request timeout. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(s *RemoteSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(log *slog.Logger) RemoteOption {
	return func(s *RemoteSource) {
		if log != nil {
			s.log = log
		}
	}
}

// NewRemoteSource returns a source backed by cache. The caller keeps ownership of the cache.
func NewRemoteSource(cache Cache, opts ...RemoteOption) *RemoteSource {
	s := &RemoteSource{
		endpoint: DefaultEndpoint,
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
		cache:    cache,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRemoteSource loads the cache at cachePath (see OpenCache) and returns a source using it. Close releases the
// cache.
func OpenRemoteSource(cachePath string, opts ...RemoteOption) (*RemoteSource, error) {
	s := NewRemoteSource(nil, opts...)
	cache, err := OpenCache(cachePath, s.log)
	if err != nil {
		return nil, fmt.Errorf("opening elevation cache: %w", err)
	}
	s.cache = cache
	s.log.Debug("remote elevation source ready", "endpoint", s.endpoint, "cache", cachePath, "cached", cache.Len())
	return s, nil
}

func (s *RemoteSource) Name() string {
	return "USGS Point Query Service"
}

func (s *RemoteSource) Close() error {
	return s.cache.Close()
}

func (s *RemoteSource) Elevation(ctx context.Context, lat, lon float64) Sample {
	key := CacheKey(lat, lon)
	if v, ok := s.cache.Get(key); ok {
		cacheHits.Inc()
		return observe(remoteLabel, Meters(v))
	}
	if ctx.Err() != nil {
		return observe(remoteLabel, NoData())
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// an earlier flight for this key may have finished between the Get above and now
		if v, ok := s.cache.Get(key); ok {
			cacheHits.Inc()
			return v, nil
		}
		cacheMisses.Inc()
		v, err := s.fetch(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Put(key, v); err != nil {
			cacheWriteErrors.Inc()
			s.log.Warn("persisting elevation cache", "key", key, "error", err)
		}
		return v, nil
	})
	if err != nil {
		s.log.Warn("elevation lookup failed", "key", key, "error", err)
		return observe(remoteLabel, NoData())
	}
	return observe(remoteLabel, Meters(v.(float64)))
}

func (s *RemoteSource) fetch(ctx context.Context, lat, lon float64) (float64, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return 0, fmt.Errorf("parsing endpoint %q: %w", s.endpoint, err)
	}
	q := u.Query()
	q.Set("x", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("units", "Meters")
	q.Set("wkid", "4326")
	q.Set("includeDate", "false")
	u.RawQuery = q.Encode()

	// a request already sent runs to completion or timeout even if ctx is cancelled; the answer is still cached
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := ctxhttp.Get(ctx, s.client, u.String())
	if err != nil {
		requestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return 0, fmt.Errorf("requesting elevation: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	requestDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("point query returned %s: %s", resp.Status, summarize(contentType, body))
	}

	v, err := parseValue(body)
	if err != nil {
		return 0, fmt.Errorf("%w (%s)", err, summarize(contentType, body))
	}
	if err := Validate(v); err != nil {
		return 0, err
	}
	return v, nil
}

// parseValue reads the "value" field of a point-query response. The service has answered with both JSON numbers and
// numeric strings.
func parseValue(body []byte) (float64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	raw, ok := fields["value"]
	if !ok || string(raw) == "null" {
		return 0, ErrNoValue
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("decoding value %s: %w", raw, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing value %q: %w", str, err)
	}
	return v, nil
}

// summarize makes a short single-line description of a response body for the log. Gateways in front of the service
// answer with HTML pages, so for those the page title (or first heading) is used.
func summarize(contentType string, body []byte) string {
	if strings.Contains(contentType, "html") {
		if dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			for _, selector := range []string{"title", "h1", "body"} {
				if text := strings.Join(strings.Fields(dom.Find(selector).First().Text()), " "); text != "" {
					return truncate(text, 120)
				}
			}
		}
	}
	return truncate(strings.Join(strings.Fields(string(body)), " "), 120)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
