// Package openfoodfacts fetches product records from the Open Food Facts API.
package openfoodfacts

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

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pageza/nutrilog/backend/internal/cache"
	"github.com/pageza/nutrilog/backend/internal/model"
)

// DefaultBaseURL is the public Open Food Facts instance
const DefaultBaseURL = "https://world.openfoodfacts.org"

const userAgent = "nutrilog/1.0 (+https://github.com/pageza/nutrilog)"

// maxBodySize bounds the product documents read from the API
const maxBodySize = 4 << 20

var (
	// ErrProductNotFound is returned when the barcode is unknown to Open Food Facts
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidBarcode is returned for barcodes that are not digit strings
	ErrInvalidBarcode = errors.New("invalid barcode")
)

// Client looks products up by barcode and caches the results
type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	log     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache caches product lookups for ttl
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.ttl = ttl
	}
}

// NewClient creates a client for the instance at baseURL
func NewClient(baseURL string, log *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.Named("openfoodfacts"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Product returns the product registered under barcode.
// Concurrent lookups of the same barcode share one request; a caller whose ctx ends
// stops waiting without cancelling the request for the others.
func (c *Client) Product(ctx context.Context, barcode string) (*model.ExternalFood, error) {
	barcode = strings.TrimSpace(barcode)
	if !validBarcode(barcode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBarcode, barcode)
	}

	if rec, ok := c.cached(ctx, barcode); ok {
		return rec, nil
	}

	// The shared request outlives any single caller; the http client timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(barcode, func() (any, error) {
		rec, err := c.fetch(shared, barcode)
		if err != nil {
			return nil, err
		}
		c.store(shared, barcode, rec)
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rec := *res.Val.(*model.ExternalFood)
		return &rec, nil
	}
}

func (c *Client) cached(ctx context.Context, barcode string) (*model.ExternalFood, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, barcode)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.log.Warn("cache read failed", zap.String("barcode", barcode), zap.Error(err))
		}
		return nil, false
	}
	var rec model.ExternalFood
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.log.Warn("discarding corrupt cache entry", zap.String("barcode", barcode), zap.Error(err))
		return nil, false
	}
	return &rec, true
}

func (c *Client) store(ctx context.Context, barcode string, rec *model.ExternalFood) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, barcode, raw, c.ttl); err != nil {
		c.log.Warn("cache write failed", zap.String("barcode", barcode), zap.Error(err))
	}
}

func (c *Client) fetch(ctx context.Context, barcode string) (*model.ExternalFood, error) {
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debug("product fetched",
		zap.String("barcode", barcode),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	// Unknown products are answered with 404 and status 0 in the body
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, barcode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open food facts returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("open food facts returned invalid JSON")
	}
	return parseProduct(body, barcode)
}

// parseProduct reads the fields used by the catalog out of a product document.
// Nutriment values are sometimes sent as strings, which gjson converts.
func parseProduct(body []byte, barcode string) (*model.ExternalFood, error) {
	doc := gjson.ParseBytes(body)
	if doc.Get("status").Int() != 1 || !doc.Get("product").Exists() {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, barcode)
	}

	p := doc.Get("product")
	code := doc.Get("code").String()
	if code == "" {
		code = p.Get("code").String()
	}
	if code == "" {
		code = barcode
	}

	name := p.Get("product_name").String()
	if strings.TrimSpace(name) == "" {
		name = p.Get("generic_name").String()
	}

	n := p.Get("nutriments")
	kcal := n.Get("energy-kcal_100g")
	if !kcal.Exists() {
		kcal = n.Get("energy-kcal")
	}
	return &model.ExternalFood{
		ProductName: strings.TrimSpace(name),
		Code:        code,
		Brands:      p.Get("brands").String(),
		ImageURL:    p.Get("image_url").String(),
		Nutriments: model.Nutriments{
			EnergyKcal:    kcal.Float(),
			Proteins:      n.Get("proteins_100g").Float(),
			Carbohydrates: n.Get("carbohydrates_100g").Float(),
			Sugars:        n.Get("sugars_100g").Float(),
			Fat:           n.Get("fat_100g").Float(),
			SaturatedFat:  n.Get("saturated-fat_100g").Float(),
			Fiber:         n.Get("fiber_100g").Float(),
			Sodium:        n.Get("sodium_100g").Float(),
		},
	}, nil
}

func validBarcode(s string) bool {
	if len(s) < 4 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
