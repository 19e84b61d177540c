package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"pawbook/internal/models"
)

type providerEntry struct {
	provider  models.Provider
	services  map[string]models.Service
	resources map[string]models.Resource
	rules     []models.AvailabilityRule
}

// SeedCatalog persists the configured catalog and fills the in-memory
// cache the read paths use. Runs at startup; replaces any previous seed.
func (db *DB) SeedCatalog(ctx context.Context, providers []models.Provider, services []models.Service, resources []models.Resource, rules []models.AvailabilityRule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, p := range providers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO providers (id, name, timezone, is_active) VALUES (?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET name = excluded.name, timezone = excluded.timezone, is_active = excluded.is_active`,
			p.ID, p.Name, p.Timezone, p.IsActive)
		if err != nil {
			return fmt.Errorf("seed provider %s: %w", p.ID, err)
		}
	}

	for _, s := range services {
		categories, err := json.Marshal(s.PetCategories)
		if err != nil {
			return fmt.Errorf("encode pet categories for %s: %w", s.ID, err)
		}
		overrides, err := json.Marshal(s.SizeOverrides)
		if err != nil {
			return fmt.Errorf("encode size overrides for %s: %w", s.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO services (id, provider_id, name, duration_minutes, price_cents, pet_categories, size_overrides, resource_type, resource_qty)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET provider_id = excluded.provider_id, name = excluded.name,
                 duration_minutes = excluded.duration_minutes, price_cents = excluded.price_cents,
                 pet_categories = excluded.pet_categories, size_overrides = excluded.size_overrides,
                 resource_type = excluded.resource_type, resource_qty = excluded.resource_qty`,
			s.ID, s.ProviderID, s.Name, s.DurationMinutes, s.PriceCents, string(categories), string(overrides), s.ResourceType, s.ResourceQty)
		if err != nil {
			return fmt.Errorf("seed service %s: %w", s.ID, err)
		}
	}

	for _, r := range resources {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resources (provider_id, type, capacity) VALUES (?, ?, ?)
             ON CONFLICT(provider_id, type) DO UPDATE SET capacity = excluded.capacity`,
			r.ProviderID, r.Type, r.Capacity)
		if err != nil {
			return fmt.Errorf("seed resource %s/%s: %w", r.ProviderID, r.Type, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules`); err != nil {
		return fmt.Errorf("clear availability rules: %w", err)
	}
	for _, r := range rules {
		intervals, err := json.Marshal(r.Intervals)
		if err != nil {
			return fmt.Errorf("encode rule intervals: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO availability_rules (provider_id, kind, timezone, weekday, start_min, end_min, date, intervals)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ProviderID, r.Kind, r.Timezone, int(r.Weekday), r.Start.Minutes(), r.End.Minutes(), r.Date, string(intervals))
		if err != nil {
			return fmt.Errorf("seed availability rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	db.rebuildCache(providers, services, resources, rules)
	return nil
}

func (db *DB) rebuildCache(providers []models.Provider, services []models.Service, resources []models.Resource, rules []models.AvailabilityRule) {
	entries := make(map[string]providerEntry, len(providers))
	for _, p := range providers {
		entries[p.ID] = providerEntry{
			provider:  p,
			services:  make(map[string]models.Service),
			resources: make(map[string]models.Resource),
		}
	}
	for _, s := range services {
		if e, ok := entries[s.ProviderID]; ok {
			e.services[s.ID] = s
			entries[s.ProviderID] = e
		}
	}
	for _, r := range resources {
		if e, ok := entries[r.ProviderID]; ok {
			e.resources[r.Type] = r
			entries[r.ProviderID] = e
		}
	}
	for i, r := range rules {
		if e, ok := entries[r.ProviderID]; ok {
			if r.ID == 0 {
				r.ID = int64(i + 1)
			}
			e.rules = append(e.rules, r)
			entries[r.ProviderID] = e
		}
	}

	db.mu.Lock()
	db.providers = entries
	db.mu.Unlock()
}

func (db *DB) GetProvider(id string) (models.Provider, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.providers[id]
	if !ok || !e.provider.IsActive {
		return models.Provider{}, fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	return e.provider, nil
}

func (db *DB) GetService(providerID, serviceID string) (models.Service, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.providers[providerID]
	if !ok {
		return models.Service{}, fmt.Errorf("provider %s: %w", providerID, ErrNotFound)
	}
	s, ok := e.services[serviceID]
	if !ok {
		return models.Service{}, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
	}
	return s, nil
}

func (db *DB) GetResource(providerID, resourceType string) (models.Resource, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.providers[providerID]
	if !ok {
		return models.Resource{}, fmt.Errorf("provider %s: %w", providerID, ErrNotFound)
	}
	r, ok := e.resources[resourceType]
	if !ok {
		return models.Resource{}, fmt.Errorf("resource %s: %w", resourceType, ErrNotFound)
	}
	return r, nil
}

func (db *DB) GetRules(providerID string) ([]models.AvailabilityRule, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", providerID, ErrNotFound)
	}
	return append([]models.AvailabilityRule(nil), e.rules...), nil
}

// ListServices returns every service across providers, sorted by ID for
// stable API output.
func (db *DB) ListServices() []models.Service {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []models.Service
	for _, e := range db.providers {
		for _, s := range e.services {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
