package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/oauth"
)

// DefaultCacheTTL is used when a cache is configured without a TTL
const DefaultCacheTTL = time.Hour

// Resolver fetches discovery documents. Failures are returned immediately;
// there is no retry.
type Resolver struct {
	client   *oauth.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithCache enables caching of validated documents
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// WithLogger sets the resolver logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a metadata resolver using client as transport
func NewResolver(client *oauth.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = DefaultCacheTTL
	}
	return r
}

// Resolve returns the metadata published at discoveryURL
func (r *Resolver) Resolve(ctx context.Context, discoveryURL string) (*Metadata, error) {
	if md := r.fromCache(ctx, discoveryURL); md != nil {
		return md, nil
	}

	r.logger.Info("calling discovery endpoint", zap.String("url", discoveryURL))

	var body []byte
	if err := r.client.GetJSON(ctx, discoveryURL, nil, &body); err != nil {
		return nil, fmt.Errorf("fetching discovery document: %w", err)
	}

	md, err := parseMetadata(discoveryURL, body)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("resolved metadata",
		zap.String("issuer", md.Issuer),
		zap.String("device_authorization_endpoint", md.DeviceAuthorizationEndpoint),
		zap.String("token_endpoint", md.TokenEndpoint),
		zap.String("userinfo_endpoint", md.UserinfoEndpoint),
	)

	if r.cache != nil {
		if err := r.cache.Set(ctx, discoveryURL, body, r.cacheTTL); err != nil {
			r.logger.Warn("caching discovery document failed", zap.Error(err))
		}
	}

	return md, nil
}

// CheckHealth reports the health of the cache, if one is configured
func (r *Resolver) CheckHealth(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.CheckHealth(ctx)
}

func (r *Resolver) fromCache(ctx context.Context, discoveryURL string) *Metadata {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, discoveryURL)
	if err != nil {
		r.logger.Warn("reading discovery cache failed", zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}
	md, err := parseMetadata(discoveryURL, data)
	if err != nil {
		r.logger.Warn("ignoring cached discovery document", zap.Error(err))
		return nil
	}
	r.logger.Debug("using cached discovery document", zap.String("url", discoveryURL))
	return md
}
