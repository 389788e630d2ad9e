package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMind provides country lookups backed by a local GeoIP2 or GeoLite2
// database file.
type MaxMind struct {
	reader *geoip2.Reader
}

// NewMaxMind opens the database at path.
func NewMaxMind(path string) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &MaxMind{reader: reader}, nil
}

// CountryCode returns the ISO country code for the provided IP.
func (m *MaxMind) CountryCode(_ context.Context, ip string) (string, error) {
	if m == nil || m.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := m.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

// Close closes the underlying database reader.
func (m *MaxMind) Close() error {
	if m == nil || m.reader == nil {
		return nil
	}
	return m.reader.Close()
}
