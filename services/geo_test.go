package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGeoCSV = `# cidr,country,city
203.0.113.0/24,AU,Sydney
198.51.100.0/24,US,Chicago
198.51.100.128/25,US,New York
2001:db8:1::/48,DE,Berlin
`

func loadedResolver(t *testing.T) *GeoResolver {
	t.Helper()
	geo := NewGeoResolver()
	require.NoError(t, geo.LoadCSV(strings.NewReader(testGeoCSV)))
	return geo
}

func TestGeoLookup(t *testing.T) {
	geo := loadedResolver(t)

	loc := geo.Lookup("203.0.113.99")
	require.NotNil(t, loc)
	assert.Equal(t, "AU", loc.Country)
	assert.Equal(t, "Sydney", loc.City)

	loc = geo.Lookup("2001:db8:1::42")
	require.NotNil(t, loc)
	assert.Equal(t, "DE", loc.Country)
}

func TestGeoLookupLongestPrefixWins(t *testing.T) {
	geo := loadedResolver(t)

	loc := geo.Lookup("198.51.100.200")
	require.NotNil(t, loc)
	assert.Equal(t, "New York", loc.City)

	loc = geo.Lookup("198.51.100.5")
	require.NotNil(t, loc)
	assert.Equal(t, "Chicago", loc.City)
}

func TestGeoLookupPrivateAndReservedAddresses(t *testing.T) {
	geo := loadedResolver(t)

	for _, addr := range []string{
		"127.0.0.1",
		"192.168.1.15",
		"10.0.0.1",
		"10.255.255.255",
		"172.16.44.2",
		"169.254.0.10",
		"0.0.0.0",
		"::1",
		"fe80::1",
		"ff02::1",
	} {
		assert.Nil(t, geo.Lookup(addr), "address %s must resolve to nil", addr)
	}
}

func TestGeoLookupUnresolvable(t *testing.T) {
	geo := loadedResolver(t)

	assert.Nil(t, geo.Lookup("not-an-address"))
	assert.Nil(t, geo.Lookup(""))
	assert.Nil(t, geo.Lookup("8.8.8.8"), "public address outside the table misses")
}

func TestGeoLookupStripsPort(t *testing.T) {
	geo := loadedResolver(t)

	loc := geo.Lookup("203.0.113.4:51423")
	require.NotNil(t, loc)
	assert.Equal(t, "AU", loc.Country)
}

func TestGeoReloadReplacesTable(t *testing.T) {
	geo := loadedResolver(t)
	require.NoError(t, geo.LoadCSV(strings.NewReader("203.0.113.0/24,NZ,Auckland\n")))

	loc := geo.Lookup("203.0.113.1")
	require.NotNil(t, loc)
	assert.Equal(t, "NZ", loc.Country)
	assert.Nil(t, geo.Lookup("198.51.100.5"), "old ranges are gone after reload")
	assert.Equal(t, 1, geo.Size())
}

func TestGeoBadLoadKeepsPreviousTable(t *testing.T) {
	geo := loadedResolver(t)
	err := geo.LoadCSV(strings.NewReader("totally,broken\n"))
	assert.Error(t, err)
	assert.NotNil(t, geo.Lookup("203.0.113.1"), "failed reload must not clear the table")
}

func TestGeoEmptyResolverNeverPanics(t *testing.T) {
	geo := NewGeoResolver()
	assert.Nil(t, geo.Lookup("203.0.113.1"))
	assert.Zero(t, geo.Size())
}
