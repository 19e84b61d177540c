package models

// Provider is a service provider whose working hours and bookings the
// engine schedules. The provider's own time is an implicit exclusive
// resource (capacity 1).
type Provider struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Timezone string `yaml:"timezone" json:"timezone"`
	IsActive bool   `yaml:"is_active" json:"is_active"`
}

// SizeOverride adjusts duration and price for one pet size class.
type SizeOverride struct {
	DurationMinutes int   `yaml:"duration_minutes" json:"duration_minutes"`
	PriceCents      int64 `yaml:"price_cents" json:"price_cents"`
}

// Service describes one bookable offering.
type Service struct {
	ID              string                  `yaml:"id" json:"id"`
	ProviderID      string                  `yaml:"provider_id" json:"provider_id"`
	Name            string                  `yaml:"name" json:"name"`
	DurationMinutes int                     `yaml:"duration_minutes" json:"duration_minutes"`
	PriceCents      int64                   `yaml:"price_cents" json:"price_cents"`
	PetCategories   []string                `yaml:"pet_categories" json:"pet_categories"`
	SizeOverrides   map[string]SizeOverride `yaml:"size_overrides" json:"size_overrides,omitempty"`
	ResourceType    string                  `yaml:"resource_type" json:"resource_type,omitempty"`
	ResourceQty     int                     `yaml:"resource_qty" json:"resource_qty,omitempty"`
}

// AcceptsCategory reports whether the service takes the pet category.
// An empty category list means the service accepts every category.
func (s Service) AcceptsCategory(category string) bool {
	if len(s.PetCategories) == 0 {
		return true
	}
	for _, c := range s.PetCategories {
		if c == category {
			return true
		}
	}
	return false
}

// EffectiveDuration returns the service duration in minutes for a pet
// size, honoring per-size overrides.
func (s Service) EffectiveDuration(petSize string) int {
	if o, ok := s.SizeOverrides[petSize]; ok && o.DurationMinutes > 0 {
		return o.DurationMinutes
	}
	return s.DurationMinutes
}

// EffectivePrice returns the price snapshot in cents for a pet size.
func (s Service) EffectivePrice(petSize string) int64 {
	if o, ok := s.SizeOverrides[petSize]; ok && o.PriceCents > 0 {
		return o.PriceCents
	}
	return s.PriceCents
}

// RequiredResourceQty returns how many units of the service's resource
// type one booking consumes. Zero when no shared resource is required.
func (s Service) RequiredResourceQty() int {
	if s.ResourceType == "" {
		return 0
	}
	if s.ResourceQty <= 0 {
		return 1
	}
	return s.ResourceQty
}

// Resource is a shared limited resource: Capacity bookings of its type
// may overlap at any instant. Capacity 1 models an exclusive resource.
type Resource struct {
	ProviderID string `yaml:"provider_id" json:"provider_id"`
	Type       string `yaml:"type" json:"type"`
	Capacity   int    `yaml:"capacity" json:"capacity"`
}
