package geoip

import (
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

const (
	defaultCacheSize = 4096
	// Unknown is returned for private addresses and lookup failures.
	Unknown = "UNKNOWN"
)

// Lookup resolves source countries for alerts from a MaxMind country database,
// caching results per address.
type Lookup struct {
	mu    sync.RWMutex
	db    *geoip2.Reader
	cache *lruCache
}

// Open opens the MaxMind GeoLite2-Country database at path.
func Open(path string, cacheSize int) (*Lookup, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("GeoIP database opened", "path", path, "cache_size", cacheSize)
	return &Lookup{db: db, cache: newLRUCache(cacheSize)}, nil
}

// Country returns the ISO country code of ip, or Unknown.
func (l *Lookup) Country(ip net.IP) string {
	if l == nil {
		return Unknown
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return Unknown
	}
	addr = addr.Unmap()
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return Unknown
	}
	if cc, ok := l.cache.get(addr); ok {
		return cc
	}

	l.mu.RLock()
	db := l.db
	l.mu.RUnlock()
	if db == nil {
		return Unknown
	}
	record, err := db.Country(net.IP(addr.AsSlice()))
	if err != nil {
		slog.Warn("GeoIP country lookup failed", "ip", addr.String(), "err", err)
		l.cache.put(addr, Unknown)
		return Unknown
	}
	cc := Unknown
	if record.Country.IsoCode != "" {
		cc = record.Country.IsoCode
	}
	l.cache.put(addr, cc)
	return cc
}

// Close releases the database.
func (l *Lookup) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
