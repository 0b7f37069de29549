package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gridwatch/grid-status-service/internal/models"
)

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them while fresh.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache[models.CityRecord](clock)

	val := models.CityRecord{CurrentLoad: 1234, Capacity: 2500}
	if err := c.Set(ctx, "nyc", val, 10*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "nyc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.CurrentLoad != val.CurrentLoad || got.Capacity != val.Capacity {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Get_Miss verifies ok=false for unknown keys.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	c := NewInMemoryCache[models.CityRecord](clockwork.NewFakeClock())
	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies entries stop being fresh once the
// clock advances past their TTL.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache[models.CityRecord](clock)

	if err := c.Set(ctx, "nyc", models.CityRecord{CurrentLoad: 1}, 10*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(10*time.Minute - time.Second)
	if _, ok, _ := c.Get(ctx, "nyc"); !ok {
		t.Fatal("Get() just inside TTL: ok = false, want true")
	}

	clock.Advance(2 * time.Second)
	if _, ok, _ := c.Get(ctx, "nyc"); ok {
		t.Fatal("Get() past TTL: ok = true, want false")
	}
}

// TestInMemoryCache_GetStale verifies expired entries remain reachable via
// GetStale within maxAge and disappear beyond it.
func TestInMemoryCache_GetStale(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache[models.RegionSnapshot](clock)

	snap := models.RegionSnapshot{"West": {CurrentLoad: 72000, Capacity: 78000}}
	if err := c.Set(ctx, "regions", snap, 10*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(30 * time.Minute)
	if _, ok, _ := c.Get(ctx, "regions"); ok {
		t.Fatal("Get() should miss after TTL")
	}

	got, ok, err := c.GetStale(ctx, "regions", time.Hour)
	if err != nil {
		t.Fatalf("GetStale() error = %v", err)
	}
	if !ok {
		t.Fatal("GetStale() within maxAge: ok = false, want true")
	}
	if got["West"].CurrentLoad != 72000 {
		t.Errorf("GetStale() = %+v, want original snapshot", got)
	}

	clock.Advance(time.Hour)
	if _, ok, _ := c.GetStale(ctx, "regions", time.Hour); ok {
		t.Fatal("GetStale() past maxAge: ok = true, want false")
	}
}

// TestInMemoryCache_Delete verifies Delete removes the entry and is a no-op
// on unknown keys.
func TestInMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache[models.CityRecord](clock)

	_ = c.Set(ctx, "nyc", models.CityRecord{}, time.Minute)
	if err := c.Delete(ctx, "nyc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "nyc"); ok {
		t.Error("Get() after Delete: ok = true, want false")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete() unknown key error = %v, want nil", err)
	}
}

// TestInMemoryCache_SetReplaces verifies a second Set replaces the entry
// and restarts its TTL.
func TestInMemoryCache_SetReplaces(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache[models.CityRecord](clock)

	_ = c.Set(ctx, "nyc", models.CityRecord{CurrentLoad: 1}, time.Minute)
	clock.Advance(50 * time.Second)
	_ = c.Set(ctx, "nyc", models.CityRecord{CurrentLoad: 2}, time.Minute)
	clock.Advance(30 * time.Second)

	got, ok, _ := c.Get(ctx, "nyc")
	if !ok {
		t.Fatal("Get() ok = false, want true after replacement restarted TTL")
	}
	if got.CurrentLoad != 2 {
		t.Errorf("Get().CurrentLoad = %v, want 2", got.CurrentLoad)
	}
}
