// Package lens classifies enumerated camera inputs into stable lens records.
//
// Classification is a pure function of its inputs: no I/O, no shared state,
// and it never fails. The category and focus-capability decisions are policy
// functions so that the table can be replaced without touching the filter.
package lens

import "strings"

// Position is the physical side of the device a camera input faces.
type Position int

const (
	Unspecified Position = iota
	Back
	Front
)

// String returns the wire name of the position.
func (p Position) String() string {
	switch p {
	case Back:
		return "back"
	case Front:
		return "front"
	default:
		return "unspecified"
	}
}

// ParsePosition maps a wire or config name to a Position.
// Unrecognised names map to Unspecified.
func ParsePosition(s string) Position {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "back":
		return Back
	case "front":
		return Front
	default:
		return Unspecified
	}
}

// DeviceType is the driver's opaque device-type tag
// (e.g. "builtInWideAngleCamera").
type DeviceType string

// Known device-type tags reported by camera drivers.
const (
	WideAngle  DeviceType = "builtInWideAngleCamera"
	UltraWide  DeviceType = "builtInUltraWideCamera"
	Telephoto  DeviceType = "builtInTelephotoCamera"
	TrueDepth  DeviceType = "builtInTrueDepthCamera"
	Dual       DeviceType = "builtInDualCamera"
	DualWide   DeviceType = "builtInDualWideCamera"
	Triple     DeviceType = "builtInTripleCamera"
	LiDARDepth DeviceType = "builtInLiDARDepthCamera"
)

// Category labels.
const (
	CategoryWide      = "wide"
	CategoryUltraWide = "ultraWide"
	CategoryTelephoto = "telephoto"
	CategoryFront     = "front"
	CategoryUnknown   = "unknown"
)

// Descriptor is one camera input as enumerated by the driver.
type Descriptor struct {
	ID         string
	Name       string
	Position   Position
	DeviceType DeviceType
}

// Record is the classified, wire-ready form of a Descriptor.
type Record struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Position      string `json:"position"`
	Category      string `json:"category"`
	SupportsFocus bool   `json:"supportsFocus"`
}

// CategoryPolicy maps a device-type tag to a category label, using the
// position when the tag alone is not conclusive. Implementations must be
// total and deterministic.
type CategoryPolicy func(t DeviceType, fallback Position) string

// FocusPolicy reports whether a device supports focus control.
type FocusPolicy func(d Descriptor) bool

// DefaultCategory is the built-in tag table.
func DefaultCategory(t DeviceType, fallback Position) string {
	switch t {
	case WideAngle:
		if fallback == Front {
			return CategoryFront
		}
		return CategoryWide
	case UltraWide:
		return CategoryUltraWide
	case Telephoto:
		return CategoryTelephoto
	case TrueDepth:
		return CategoryFront
	}
	return PositionCategory(fallback)
}

// PositionCategory derives a label from the position alone.
func PositionCategory(p Position) string {
	if p == Front {
		return CategoryFront
	}
	return CategoryUnknown
}

// TableCategory returns a policy that looks tags up in overrides first and
// defers to fallback for anything not listed. A nil fallback uses
// DefaultCategory. Empty labels in the table are ignored.
func TableCategory(overrides map[string]string, fallback CategoryPolicy) CategoryPolicy {
	if fallback == nil {
		fallback = DefaultCategory
	}
	table := make(map[DeviceType]string, len(overrides))
	for tag, label := range overrides {
		if label == "" {
			continue
		}
		table[DeviceType(tag)] = label
	}
	return func(t DeviceType, p Position) string {
		if label, ok := table[t]; ok {
			return label
		}
		return fallback(t, p)
	}
}

// AlwaysFocus is the default FocusPolicy.
func AlwaysFocus(Descriptor) bool { return true }

// Classifier turns descriptors into records using its policies.
// The zero value uses DefaultCategory and AlwaysFocus.
type Classifier struct {
	Category CategoryPolicy
	Focus    FocusPolicy
}

// Classify filters and converts devices, preserving input order.
// Front-facing devices are dropped unless includeFront is set.
func (c Classifier) Classify(devices []Descriptor, includeFront bool) []Record {
	category := c.Category
	if category == nil {
		category = DefaultCategory
	}
	focus := c.Focus
	if focus == nil {
		focus = AlwaysFocus
	}

	records := make([]Record, 0, len(devices))
	for _, d := range devices {
		if d.Position == Front && !includeFront {
			continue
		}
		records = append(records, Record{
			ID:            d.ID,
			Name:          d.Name,
			Position:      d.Position.String(),
			Category:      category(d.DeviceType, d.Position),
			SupportsFocus: focus(d),
		})
	}
	return records
}

// Classify uses the default policies.
func Classify(devices []Descriptor, includeFront bool) []Record {
	return Classifier{}.Classify(devices, includeFront)
}
