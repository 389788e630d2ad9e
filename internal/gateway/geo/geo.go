// Package geo resolves the country a client address belongs to.
package geo

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geo resolver unavailable")

// CountryResolver resolves ISO 3166-1 alpha-2 country codes from IP addresses.
type CountryResolver interface {
	CountryCode(ctx context.Context, ip string) (string, error)
}

// Options select a resolver backend.
type Options struct {
	IPStackAPIKey string
	GeoIPDBPath   string
}

// New returns the configured resolver: ipstack when an access key is set,
// otherwise a local GeoIP2 database when a path is set. With neither, it
// returns nil and geofencing is off.
func New(opts Options) (CountryResolver, error) {
	if opts.IPStackAPIKey != "" {
		return NewIPStack(opts.IPStackAPIKey, nil), nil
	}
	if opts.GeoIPDBPath != "" {
		m, err := NewMaxMind(opts.GeoIPDBPath)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, nil
}
