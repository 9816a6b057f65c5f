package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"

	"gorm.io/gorm"
)

var ErrUnknownLocation = errors.New("unknown location name")

// GeoResolver turns the territory/municipality names CSV files carry into the
// ids the Person store wants.
type GeoResolver interface {
	ResolveTerritory(ctx context.Context, name string) (int, error)
	ResolveMunicipality(ctx context.Context, name string) (int, error)
}

var (
	geoCacheMu  sync.RWMutex
	geoCache    *geoCacheEntry
	geoCacheTTL = 5 * time.Minute
)

type geoCacheEntry struct {
	territories    map[string]int
	municipalities map[string]int
	fetchedAt      time.Time
}

// GormGeoResolver resolves names against the geographic catalogs with a small
// in-memory cache; the catalogs change rarely and imports hit them per row.
type GormGeoResolver struct {
	db *gorm.DB
}

func NewGormGeoResolver(db *gorm.DB) *GormGeoResolver {
	if db == nil {
		db = config.DB
	}
	return &GormGeoResolver{db: db}
}

func (r *GormGeoResolver) ResolveTerritory(ctx context.Context, name string) (int, error) {
	return r.resolve(ctx, name, func(e *geoCacheEntry) map[string]int { return e.territories })
}

func (r *GormGeoResolver) ResolveMunicipality(ctx context.Context, name string) (int, error) {
	return r.resolve(ctx, name, func(e *geoCacheEntry) map[string]int { return e.municipalities })
}

func (r *GormGeoResolver) resolve(ctx context.Context, name string, pick func(*geoCacheEntry) map[string]int) (int, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownLocation)
	}

	entry, err := r.load(ctx, false)
	if err != nil {
		return 0, err
	}
	if id, ok := pick(entry)[key]; ok {
		return id, nil
	}

	// Force one refresh before giving up; the catalog may have grown since
	// the cache was filled.
	entry, err = r.load(ctx, true)
	if err != nil {
		return 0, err
	}
	if id, ok := pick(entry)[key]; ok {
		return id, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, strings.TrimSpace(name))
}

func (r *GormGeoResolver) load(ctx context.Context, force bool) (*geoCacheEntry, error) {
	geoCacheMu.RLock()
	cached := geoCache
	geoCacheMu.RUnlock()

	if cached != nil && !force && time.Since(cached.fetchedAt) < geoCacheTTL {
		return cached, nil
	}

	geoCacheMu.Lock()
	defer geoCacheMu.Unlock()

	if geoCache != nil && !force && time.Since(geoCache.fetchedAt) < geoCacheTTL {
		return geoCache, nil
	}

	var territories []models.Territory
	if err := r.db.WithContext(ctx).Find(&territories).Error; err != nil {
		return nil, fmt.Errorf("failed to load territories: %w", err)
	}
	var municipalities []models.Municipality
	if err := r.db.WithContext(ctx).Find(&municipalities).Error; err != nil {
		return nil, fmt.Errorf("failed to load municipalities: %w", err)
	}

	entry := &geoCacheEntry{
		territories:    make(map[string]int, len(territories)),
		municipalities: make(map[string]int, len(municipalities)),
		fetchedAt:      time.Now(),
	}
	for _, t := range territories {
		entry.territories[strings.ToLower(strings.TrimSpace(t.Name))] = t.ID
	}
	for _, m := range municipalities {
		entry.municipalities[strings.ToLower(strings.TrimSpace(m.Name))] = m.ID
	}

	geoCache = entry
	return entry, nil
}

// ClearGeoCache invalidates the in-memory location cache.
func ClearGeoCache() {
	geoCacheMu.Lock()
	defer geoCacheMu.Unlock()
	geoCache = nil
}
