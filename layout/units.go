package layout

import (
	"strconv"
	"strings"
)

// This file defines unit-safe helpers for caption lengths (band height, font size).

// Unit represents the original unit of a length value as written in a style file.
type Unit int

const (
	UnitNone Unit = iota // bare numbers, treated as pixels
	UnitPX               // CSS pixels
	UnitPT               // points
)

// Conversion constants. The vector canvas works in millimetres and is
// rasterized at one pixel per millimetre, so font sizes go through pt↔mm.
const (
	PtToMm  = 25.4 / 72
	MmToPt  = 1.0 / PtToMm
	PxPerPt = 96.0 / 72.0
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitPT:
		return "pt"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToPX converts the length to CSS pixels.
func (l Length) ToPX() float64 {
	if l.Unit == UnitPT {
		return l.Value * PxPerPt
	}
	return l.Value
}

// ParseLength parses "60", "60px" or "30pt". ok is false for malformed input.
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, false
	}
	unit := UnitNone
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPX}, {"pt", UnitPT}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, false
	}
	return Length{Value: f, Unit: unit}, true
}
