// Package geo resolves visitor IPs to a country and city using a MaxMind
// GeoLite2 City database. Lookups are optional enrichment: a nil *Locator
// or a failed lookup yields empty values.
package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

type Locator struct {
	reader *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Locator{reader: reader}, nil
}

// Locate returns the English country and city names for ip, or empty
// strings when unknown.
func (l *Locator) Locate(ip string) (country, city string) {
	if l == nil || l.reader == nil {
		return "", ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", ""
	}
	record, err := l.reader.City(parsed)
	if err != nil {
		return "", ""
	}
	return record.Country.Names["en"], record.City.Names["en"]
}

func (l *Locator) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
