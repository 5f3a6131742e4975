package dispatch

import "strings"

// DefaultUnit is used when no rule matches an item name.
const DefaultUnit = "PCS"

// UnitPattern maps item names containing a substring to a unit.
type UnitPattern struct {
	Contains string
	Unit     string
}

// UnitRules infers a unit from an item name: exact match first, then substring
// patterns in order, then the default.
type UnitRules struct {
	Exact    map[string]string
	Patterns []UnitPattern
	Default  string
}

// DefaultUnitRules returns the built-in kitchen lookup table.
func DefaultUnitRules() UnitRules {
	return UnitRules{
		Exact: map[string]string{
			"rice":    "KG",
			"flour":   "KG",
			"sugar":   "KG",
			"salt":    "KG",
			"onion":   "KG",
			"tomato":  "KG",
			"potato":  "KG",
			"paneer":  "KG",
			"chicken": "KG",
			"mutton":  "KG",
			"butter":  "KG",
			"milk":    "LTR",
			"cream":   "LTR",
			"curd":    "KG",
			"eggs":    "TRAY",
			"bread":   "PKT",
		},
		Patterns: []UnitPattern{
			{Contains: "flakes", Unit: "GM"},
			{Contains: "powder", Unit: "GM"},
			{Contains: "masala", Unit: "GM"},
			{Contains: "seeds", Unit: "GM"},
			{Contains: "oil", Unit: "LTR"},
			{Contains: "sauce", Unit: "LTR"},
			{Contains: "syrup", Unit: "LTR"},
			{Contains: "juice", Unit: "LTR"},
			{Contains: "dal", Unit: "KG"},
			{Contains: "rice", Unit: "KG"},
			{Contains: "box", Unit: "BOX"},
		},
		Default: DefaultUnit,
	}
}

// Merge overlays extra rules on top of r. Exact entries in extra win;
// extra patterns are tried before r's patterns.
func (r UnitRules) Merge(extra UnitRules) UnitRules {
	out := UnitRules{
		Exact:   make(map[string]string, len(r.Exact)+len(extra.Exact)),
		Default: r.Default,
	}
	for k, v := range r.Exact {
		out.Exact[normalizeName(k)] = v
	}
	for k, v := range extra.Exact {
		out.Exact[normalizeName(k)] = v
	}
	out.Patterns = append(out.Patterns, extra.Patterns...)
	out.Patterns = append(out.Patterns, r.Patterns...)
	if extra.Default != "" {
		out.Default = extra.Default
	}
	return out
}

// Infer returns the unit for an item name.
func (r UnitRules) Infer(name string) string {
	n := normalizeName(name)
	if n != "" {
		if u, ok := r.Exact[n]; ok {
			return u
		}
		for _, p := range r.Patterns {
			if p.Contains != "" && strings.Contains(n, normalizeName(p.Contains)) {
				return p.Unit
			}
		}
	}
	if r.Default != "" {
		return r.Default
	}
	return DefaultUnit
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
