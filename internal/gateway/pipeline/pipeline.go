// Package pipeline admits image generation requests and proxies them to the
// upstream provider: validate, normalize, geofence, rate limit, dispatch.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/geo"
	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/providers"
	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/ratelimit"
	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/metrics"
	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/models"
)

// Limiter is a per-identity quota.
type Limiter interface {
	Limit(ctx context.Context, identifier string) (ratelimit.Result, error)
}

// Options wire a Pipeline. A nil Limiter turns off both policy checks, a nil
// Geo turns off the geofence only.
type Options struct {
	Provider         providers.Provider
	Limiter          Limiter
	Geo              geo.CountryResolver
	BlockedCountries []string
	Model            string
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	provider providers.Provider
	limiter  Limiter
	geo      geo.CountryResolver
	blocked  []string
	model    string
}

// Result is a successful generation.
type Result struct {
	// Image is the provider's first result object, byte for byte.
	Image json.RawMessage

	// Quota is the rate limit decision, nil when no check ran.
	Quota *ratelimit.Result

	LatencyMs int
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	model := opts.Model
	if model == "" {
		model = providers.DefaultModel
	}
	return &Pipeline{
		provider: opts.Provider,
		limiter:  opts.Limiter,
		geo:      opts.Geo,
		blocked: lo.Map(opts.BlockedCountries, func(code string, _ int) string {
			return strings.ToUpper(code)
		}),
		model: model,
	}
}

// Handle runs one raw request body from the client identified by identity
// through the pipeline. Every returned error is a *Error.
func (p *Pipeline) Handle(ctx context.Context, body []byte, identity string) (*Result, error) {
	res, err := p.handle(ctx, body, identity)
	outcome := "succeeded"
	if err != nil {
		outcome = string(KindOf(err))
	}
	metrics.GenerationRequests.WithLabelValues(outcome).Inc()
	return res, err
}

func (p *Pipeline) handle(ctx context.Context, body []byte, identity string) (*Result, error) {
	log := zerolog.Ctx(ctx)

	params, err := Parse(body)
	if err != nil {
		log.Debug().Err(err).Msg("rejected invalid generation request")
		return nil, err
	}

	var quota *ratelimit.Result
	if !params.HasUserKey() && p.limiter != nil {
		if err := p.checkGeofence(ctx, identity); err != nil {
			return nil, err
		}
		quota, err = p.checkQuota(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	image, latency, err := p.dispatch(ctx, params)
	if err != nil {
		return nil, err
	}

	return &Result{Image: image, Quota: quota, LatencyMs: latency}, nil
}

func (p *Pipeline) checkGeofence(ctx context.Context, identity string) error {
	if p.geo == nil || len(p.blocked) == 0 {
		return nil
	}
	log := zerolog.Ctx(ctx)

	code, err := p.geo.CountryCode(ctx, identity)
	if err != nil {
		metrics.PolicyFailOpen.WithLabelValues("geofence").Inc()
		log.Warn().Err(err).Str("identity", identity).Msg("geolocation lookup failed, allowing request")
		return nil
	}
	if lo.Contains(p.blocked, strings.ToUpper(code)) {
		log.Info().Str("identity", identity).Str("country", code).Msg("request blocked by geofence")
		return ErrForbidden
	}
	return nil
}

func (p *Pipeline) checkQuota(ctx context.Context, identity string) (*ratelimit.Result, error) {
	log := zerolog.Ctx(ctx)

	res, err := p.limiter.Limit(ctx, identity)
	if err != nil {
		metrics.PolicyFailOpen.WithLabelValues("ratelimit").Inc()
		log.Warn().Err(err).Str("identity", identity).Msg("quota store unavailable, allowing request")
		return nil, nil
	}
	if !res.Success {
		log.Info().Str("identity", identity).Time("reset", res.Reset).Msg("request rate limited")
		return &res, rateLimited(time.Until(res.Reset))
	}
	return &res, nil
}

// dispatch makes the single upstream attempt. It is detached from the
// caller's cancellation: once issued, the call runs to completion.
func (p *Pipeline) dispatch(ctx context.Context, params models.GenerationParams) (json.RawMessage, int, error) {
	log := zerolog.Ctx(ctx)
	start := time.Now()

	resp, err := p.provider.GenerateImage(context.WithoutCancel(ctx), providers.ImageRequest{
		Model:          p.model,
		Prompt:         params.Prompt,
		Width:          params.Width,
		Height:         params.Height,
		Steps:          params.Steps,
		ResponseFormat: "base64",
		APIKey:         params.APIKey,
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.UpstreamDuration.WithLabelValues(p.model, status).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error().Err(err).Str("provider", p.provider.GetProviderName()).Msg("image generation failed")
		return nil, 0, upstreamError(err)
	}
	if len(resp.Data) == 0 {
		return nil, 0, upstreamError(errors.New("provider returned no images"))
	}

	log.Info().
		Str("provider", p.provider.GetProviderName()).
		Int("width", params.Width).
		Int("height", params.Height).
		Int("steps", params.Steps).
		Bool("user_key", params.HasUserKey()).
		Int("latency_ms", resp.LatencyMs).
		Msg("image generated")

	return resp.Data[0], resp.LatencyMs, nil
}
