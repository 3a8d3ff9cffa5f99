package services

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/netip"
	"os"
	"sort"
	"strings"
	"sync"
)

// Location is a coarse geolocation derived from a client address.
type Location struct {
	Country string
	City    string
}

type geoRange struct {
	prefix  netip.Prefix
	country string
	city    string
}

// GeoResolver answers address → location against an in-memory CIDR
// table, so a lookup is a pure read with no network call. The table is
// loaded from an offline database file and can be swapped wholesale by
// the refresh job while lookups keep running.
type GeoResolver struct {
	mu     sync.RWMutex
	ranges []geoRange
}

func NewGeoResolver() *GeoResolver {
	return &GeoResolver{}
}

// Lookup maps a client network address to a coarse location. Private,
// loopback, link-local, multicast and unparseable addresses all return
// nil — never an error; enrichment failure is the caller's normal case.
func (g *GeoResolver) Lookup(address string) *Location {
	// Strip a port if the caller handed us host:port.
	if ap, err := netip.ParseAddrPort(address); err == nil {
		address = ap.Addr().String()
	}

	addr, err := netip.ParseAddr(address)
	if err != nil {
		return nil
	}
	addr = addr.Unmap()

	if !addr.IsValid() || addr.IsLoopback() || addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() || addr.IsUnspecified() {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	// Ranges are sorted most-specific first, so the first hit wins.
	for _, r := range g.ranges {
		if r.prefix.Contains(addr) {
			return &Location{Country: r.country, City: r.city}
		}
	}
	return nil
}

// LoadCSV replaces the table from "cidr,country,city" lines. Blank
// lines and #-comments are skipped; a malformed line aborts the load
// and leaves the previous table in place.
func (g *GeoResolver) LoadCSV(r io.Reader) error {
	var ranges []geoRange

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Split(text, ",")
		if len(parts) < 2 {
			return fmt.Errorf("geo database line %d: expected cidr,country[,city]", line)
		}
		prefix, err := netip.ParsePrefix(strings.TrimSpace(parts[0]))
		if err != nil {
			return fmt.Errorf("geo database line %d: %w", line, err)
		}
		entry := geoRange{prefix: prefix, country: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			entry.city = strings.TrimSpace(parts[2])
		}
		ranges = append(ranges, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading geo database: %w", err)
	}

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].prefix.Bits() > ranges[j].prefix.Bits()
	})

	g.mu.Lock()
	g.ranges = ranges
	g.mu.Unlock()

	log.Printf("🌍 Geo database loaded: %d ranges", len(ranges))
	return nil
}

// LoadFile loads the table from a local database file.
func (g *GeoResolver) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open geo database: %w", err)
	}
	defer f.Close()
	return g.LoadCSV(f)
}

// Size reports the number of loaded ranges (0 means lookups all miss).
func (g *GeoResolver) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.ranges)
}
