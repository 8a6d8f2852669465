// Package persist stores versioned engine snapshots in a local key-value
// database and converts region sets to and from export manifests.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/google/uuid"

	"card-annotator/internal/annotation"
	"card-annotator/pkg/geometry"
)

// SchemaVersion is bumped whenever Record changes shape incompatibly. A
// mismatched snapshot is rejected whole, never partially applied.
const SchemaVersion = 3

// ErrVersionMismatch is reported when a stored snapshot was written by an
// incompatible schema.
var ErrVersionMismatch = errors.New("snapshot schema version mismatch")

// RegionRecord is one region flattened for storage.
type RegionRecord struct {
	Key          string                `json:"key"`
	Name         string                `json:"name,omitempty"`
	Role         string                `json:"role"`
	Rect         geometry.Rect         `json:"rect"`
	OriginalRect geometry.Rect         `json:"original_rect"`
	Visible      bool                  `json:"visible"`
	Color        string                `json:"color,omitempty"`
	Conditions   annotation.Conditions `json:"conditions,omitempty"`
}

// ViewportState is the zoom and pan carried across sessions.
type ViewportState struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

// Preferences are the user settings carried across sessions.
type Preferences struct {
	SnapToGrid    bool    `json:"snap_to_grid"`
	GridSize      float64 `json:"grid_size,omitempty"`
	PercentExport bool    `json:"percent_export"`
}

// Record is one durable snapshot of engine state.
type Record struct {
	Version     int                    `json:"version"`
	ID          string                 `json:"id"`
	SavedAt     time.Time              `json:"saved_at"`
	TemplateID  string                 `json:"template_id,omitempty"`
	Calibration annotation.Calibration `json:"calibration"`
	Regions     []RegionRecord         `json:"regions"`
	SelectedKey string                 `json:"selected_key,omitempty"`
	Viewport    ViewportState          `json:"viewport"`
	Preferences Preferences            `json:"preferences"`
}

// Snapshot builds a Record from live state under a fresh ID.
func Snapshot(templateID string, cal annotation.Calibration, regions []annotation.Region, selectedKey string, vp ViewportState, prefs Preferences) Record {
	rec := Record{
		Version:     SchemaVersion,
		ID:          uuid.NewString(),
		SavedAt:     time.Now().UTC(),
		TemplateID:  templateID,
		Calibration: cal,
		SelectedKey: selectedKey,
		Viewport:    vp,
		Preferences: prefs,
	}
	for _, r := range regions {
		rec.Regions = append(rec.Regions, RegionRecord{
			Key:          r.Key,
			Name:         r.Name,
			Role:         r.Role.String(),
			Rect:         r.Rect,
			OriginalRect: r.OriginalRect,
			Visible:      r.Visible,
			Color:        hexColor(r.Color),
			Conditions:   r.Conditions,
		})
	}
	return rec
}

// Encode serializes the record for storage.
func (rec Record) Encode() ([]byte, error) {
	return json.Marshal(rec)
}

// DecodeRecord parses a stored snapshot, rejecting incompatible schema
// versions outright.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if rec.Version != SchemaVersion {
		return Record{}, fmt.Errorf("snapshot %s has version %d, want %d: %w",
			rec.ID, rec.Version, SchemaVersion, ErrVersionMismatch)
	}
	return rec, nil
}

// Apply replaces the store's contents with the record's regions.
func (rec Record) Apply(store *annotation.Store) error {
	store.Clear()
	for _, rr := range rec.Regions {
		draft := annotation.Region{
			Key:          rr.Key,
			Name:         rr.Name,
			Role:         roleFromString(rr.Role),
			Rect:         rr.Rect,
			OriginalRect: rr.OriginalRect,
			Color:        parseHexColor(rr.Color),
			Conditions:   rr.Conditions,
		}
		key, err := store.AddRegion(draft)
		if err != nil {
			return fmt.Errorf("restore region %q: %w", rr.Key, err)
		}
		if !rr.Visible {
			if err := store.SetVisible(key, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func roleFromString(s string) annotation.RegionRole {
	switch s {
	case "text":
		return annotation.RoleTextBearing
	case "icon":
		return annotation.RoleIconLike
	default:
		return annotation.RoleGeneric
	}
}

func hexColor(c color.RGBA) string {
	if c == (color.RGBA{}) {
		return ""
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func parseHexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
