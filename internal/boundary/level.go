// Package boundary loads the national village-boundary payload and builds
// the multi-level administrative indexes the choropleth join engine reads.
// Features are owned by the Index after load; consumers only borrow them.
package boundary

import "strings"

// Level is one tier of the six-level administrative hierarchy. Village is
// always a leaf; every feature at a deeper level carries the name of exactly
// one ancestor at each shallower level.
type Level int

const (
	LevelRegion Level = iota + 1
	LevelDistrict
	LevelConstituency
	LevelSubcounty
	LevelParish
	LevelVillage
)

const (
	MinLevel = LevelRegion
	MaxLevel = LevelVillage
)

var levelNames = map[Level]string{
	LevelRegion:       "region",
	LevelDistrict:     "district",
	LevelConstituency: "constituency",
	LevelSubcounty:    "subcounty",
	LevelParish:       "parish",
	LevelVillage:      "village",
}

// propertyKeys maps each level to the GeoJSON property names it may be
// stored under. The first entry is the canonical key; the rest are the
// uppercase column names carried over from the electoral commission
// shapefile exports.
var propertyKeys = map[Level][]string{
	LevelRegion:       {"region", "REGION", "RNAME2016"},
	LevelDistrict:     {"district", "DNAME2016", "DNAME2010", "DNAME"},
	LevelConstituency: {"constituency", "CNAME2016", "CNAME"},
	LevelSubcounty:    {"subcounty", "SNAME2016", "SNAME"},
	LevelParish:       {"parish", "PNAME2016", "PNAME"},
	LevelVillage:      {"village", "VNAME2016", "VNAME"},
}

// Valid reports whether l is within the 1..6 hierarchy.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel maps a level name back to its Level, returning false for
// unknown names. Matching is case-insensitive.
func ParseLevel(name string) (Level, bool) {
	name = strings.ToLower(name)
	for l, n := range levelNames {
		if n == name {
			return l, true
		}
	}
	return 0, false
}
