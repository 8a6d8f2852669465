package annotation

import (
	"fmt"
	"image/color"
	"strings"

	"card-annotator/pkg/geometry"
)

// Store is the single owner of the region list. It preserves insertion
// order, hands out deep copies on reads, and applies every mutation
// atomically: an operation either fully succeeds or leaves the store
// unchanged.
//
// The store never records undo snapshots itself; callers snapshot before
// mutating so that a multi-step drag collapses into one undo entry.
type Store struct {
	regions []*Region
	index   map[string]int
	added   int // total regions ever added, drives palette assignment
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// RegionPatch describes a partial update to a region. Nil fields are left
// untouched.
type RegionPatch struct {
	Name         *string
	Rect         *geometry.Rect
	OriginalRect *geometry.Rect
	Color        *color.RGBA
	Conditions   *Conditions
}

// AddRegion inserts a region and returns its final key. Well-known template
// roles collide with ErrDuplicateKey; any other key is auto-uniquified.
// Missing fields are defaulted: the role from the key, the color from the
// overlay palette, the current rect from the original rect, and visibility
// to true.
func (s *Store) AddRegion(draft Region) (string, error) {
	key := strings.TrimSpace(draft.Key)
	if key == "" {
		key = slugify(draft.Name)
	}
	if _, exists := s.index[key]; exists {
		if IsTemplateRole(key) {
			return "", fmt.Errorf("add region %q: %w", key, ErrDuplicateKey)
		}
		key = s.UniqueKey(key)
	}

	region := draft.Clone()
	region.Key = key
	if region.Name == "" {
		region.Name = key
	}
	if region.Role == RoleGeneric {
		region.Role = RoleForKey(key)
	}
	if region.Color == (color.RGBA{}) {
		region.Color = paletteColor(s.added)
	}
	if region.Rect == (geometry.Rect{}) {
		region.Rect = region.OriginalRect
	}
	region.Visible = true

	s.index[key] = len(s.regions)
	s.regions = append(s.regions, region)
	s.added++
	return key, nil
}

// UpdateRegion applies a patch to the region with the given key.
func (s *Store) UpdateRegion(key string, patch RegionPatch) error {
	i, ok := s.index[key]
	if !ok {
		return fmt.Errorf("update region %q: %w", key, ErrRegionNotFound)
	}
	r := s.regions[i]
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Rect != nil {
		r.Rect = *patch.Rect
	}
	if patch.OriginalRect != nil {
		r.OriginalRect = *patch.OriginalRect
	}
	if patch.Color != nil {
		r.Color = *patch.Color
	}
	if patch.Conditions != nil {
		r.Conditions = *patch.Conditions
	}
	return nil
}

// RemoveRegion deletes a region. Regions are never removed implicitly.
func (s *Store) RemoveRegion(key string) error {
	i, ok := s.index[key]
	if !ok {
		return fmt.Errorf("remove region %q: %w", key, ErrRegionNotFound)
	}
	s.regions = append(s.regions[:i], s.regions[i+1:]...)
	s.reindex()
	return nil
}

// SetVisible toggles a region's visibility.
func (s *Store) SetVisible(key string, visible bool) error {
	i, ok := s.index[key]
	if !ok {
		return fmt.Errorf("set visible %q: %w", key, ErrRegionNotFound)
	}
	s.regions[i].Visible = visible
	return nil
}

// Get returns a copy of the region with the given key.
func (s *Store) Get(key string) (Region, bool) {
	i, ok := s.index[key]
	if !ok {
		return Region{}, false
	}
	return *s.regions[i], true
}

// Has reports whether a region with the given key exists.
func (s *Store) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Len returns the number of regions.
func (s *Store) Len() int {
	return len(s.regions)
}

// List returns copies of all regions in stable insertion order.
func (s *Store) List() []Region {
	out := make([]Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = *r
	}
	return out
}

// ListVisible returns copies of the visible regions in insertion order.
func (s *Store) ListVisible() []Region {
	out := make([]Region, 0, len(s.regions))
	for _, r := range s.regions {
		if r.Visible {
			out = append(out, *r)
		}
	}
	return out
}

// RescaleAll resets every region's current rect from its template-space
// original: original * scale + cropOffset, clamped to the image bounds.
// Because the derivation never reads the current rect, calling RescaleAll
// twice with the same inputs yields identical results.
func (s *Store) RescaleAll(cal Calibration, imageW, imageH int) {
	bounds := geometry.Size{Width: float64(imageW), Height: float64(imageH)}
	for _, r := range s.regions {
		r.Rect = geometry.Clamp(cal.Apply(r.OriginalRect, imageW, imageH), bounds)
	}
}

// UniqueKey returns base if free, otherwise the first free base_2, base_3, …
func (s *Store) UniqueKey(base string) string {
	if _, exists := s.index[base]; !exists {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if _, exists := s.index[candidate]; !exists {
			return candidate
		}
	}
}

// SnapshotRegions returns a deep copy of the region list for the undo ledger.
func (s *Store) SnapshotRegions() []*Region {
	out := make([]*Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = r.Clone()
	}
	return out
}

// RestoreRegions replaces the whole region list from a snapshot, deep-copying
// so the ledger's copy cannot drift afterwards.
func (s *Store) RestoreRegions(regions []*Region) {
	s.regions = make([]*Region, len(regions))
	for i, r := range regions {
		s.regions[i] = r.Clone()
	}
	s.reindex()
}

// Clear removes all regions, e.g. before populating from a fresh template.
func (s *Store) Clear() {
	s.regions = nil
	s.index = make(map[string]int)
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.regions))
	for i, r := range s.regions {
		s.index[r.Key] = i
	}
}

// slugify turns a display name into a key ("Set Icon" -> "set_icon").
func slugify(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "region"
	}
	return strings.Join(strings.Fields(name), "_")
}
