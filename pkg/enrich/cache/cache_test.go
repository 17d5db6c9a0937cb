package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalizesIdentity(t *testing.T) {
	a := enrich.LocationRecord{Name: " Cafe Test ", Address: "Rynek 1", City: "KRAKOW", Country: "Poland"}
	b := enrich.LocationRecord{Name: "cafe test", Address: " rynek 1", City: "krakow", Country: "POLAND "}
	assert.Equal(t, cache.Key(a), cache.Key(b))
	assert.Equal(t, "cafe test|rynek 1|krakow|poland", cache.Key(a))
}

func TestKeyIgnoresNonIdentityFields(t *testing.T) {
	a := enrich.LocationRecord{Name: "Cafe", City: "Krakow", Country: "Poland", Website: "https://a.example"}
	b := enrich.LocationRecord{Name: "Cafe", City: "Krakow", Country: "Poland", ID: "42"}
	assert.Equal(t, cache.Key(a), cache.Key(b))
}

func TestGetSetClear(t *testing.T) {
	c := cache.New()
	loc := enrich.LocationRecord{Name: "Cafe", City: "Krakow", Country: "Poland"}

	_, ok := c.Get(loc)
	assert.False(t, ok)

	first := enrich.NewResult(loc, time.Unix(0, 0))
	c.Set(loc, first)
	got, ok := c.Get(loc)
	require.True(t, ok)
	assert.Same(t, first, got)

	second := enrich.NewResult(loc, time.Unix(1, 0))
	c.Set(loc, second)
	got, _ = c.Get(loc)
	assert.Same(t, second, got, "last write wins")
	assert.Equal(t, 1, c.Len())

	c.Set(loc, nil)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get(loc)
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := cache.New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc := enrich.LocationRecord{Name: "Cafe", City: "Krakow", Country: string(rune('A' + i%5))}
			c.Set(loc, enrich.NewResult(loc, time.Unix(int64(i), 0)))
			_, _ = c.Get(loc)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}
