package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/use-agent/figscrape/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCache_HitAndMaxAge(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()

	key := Key("https://example.com", &models.ScrapeConfig{NameSelector: ".name"})
	c.Set(key, &models.ScrapedData{Name: "Test Product"})

	got, ok := c.Get(key, 60_000)
	if !ok || got.Name != "Test Product" {
		t.Fatalf("Get = %+v, %v; want hit", got, ok)
	}

	if _, ok := c.Get(key, 0); ok {
		t.Error("maxAge 0 must bypass the cache")
	}

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(key, 1); ok {
		t.Error("entry older than maxAge must miss")
	}
}

func TestCache_TTL(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	defer c.Close()

	key := Key("https://example.com", nil)
	c.Set(key, &models.ScrapedData{Name: "x"})
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(key, 60_000); ok {
		t.Error("entry older than ttl must miss")
	}
	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len = %d after eviction, want 0", c.Len())
	}
}

func TestCache_SkipsDegradedResults(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()

	c.Set("k", &models.ScrapedData{Error: "selector mismatch"})
	c.Set("nil", nil)
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestCache_Capacity(t *testing.T) {
	c := New(3, time.Hour)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), &models.ScrapedData{Name: "x"})
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()

	c.Set("k", &models.ScrapedData{Name: "original"})
	got, _ := c.Get("k", 60_000)
	got.Name = "mutated"

	again, _ := c.Get("k", 60_000)
	if again.Name != "original" {
		t.Errorf("cached entry was mutated: %q", again.Name)
	}
}

func TestKey_DependsOnConfig(t *testing.T) {
	a := Key("https://example.com", &models.ScrapeConfig{NameSelector: ".a"})
	b := Key("https://example.com", &models.ScrapeConfig{NameSelector: ".b"})
	if a == b {
		t.Error("different configs must produce different keys")
	}
	if a != Key("https://example.com", &models.ScrapeConfig{NameSelector: ".a"}) {
		t.Error("key must be deterministic")
	}
}
