package service

// Static geography. Four macro regions map to EIA balancing authority
// respondent codes; twenty tracked cities map to their parent region.

// RegionRespondents maps region names to EIA respondent codes.
var RegionRespondents = map[string]string{
	"Northeast": "ISNE",
	"West":      "CISO",
	"Midwest":   "MISO",
	"South":     "ERCO",
}

// RegionNames lists the regions in stable display order.
var RegionNames = []string{"Northeast", "Midwest", "South", "West"}

// cityInfo binds a city id to its display name and parent region.
type cityInfo struct {
	Name   string
	Region string
}

var cities = map[string]cityInfo{
	"nyc": {"New York", "Northeast"},
	"bos": {"Boston", "Northeast"},
	"phl": {"Philadelphia", "Northeast"},
	"pit": {"Pittsburgh", "Northeast"},

	"chi": {"Chicago", "Midwest"},
	"det": {"Detroit", "Midwest"},
	"msp": {"Minneapolis", "Midwest"},
	"stl": {"St. Louis", "Midwest"},
	"cin": {"Cincinnati", "Midwest"},

	"atl": {"Atlanta", "South"},
	"mia": {"Miami", "South"},
	"hou": {"Houston", "South"},
	"dal": {"Dallas", "South"},
	"sat": {"San Antonio", "South"},

	"lax": {"Los Angeles", "West"},
	"sfo": {"San Francisco", "West"},
	"sea": {"Seattle", "West"},
	"phx": {"Phoenix", "West"},
	"den": {"Denver", "West"},
	"san": {"San Diego", "West"},
}

// CityIDs lists every tracked city id in stable order (region order, then id).
var CityIDs = []string{
	"nyc", "bos", "phl", "pit",
	"chi", "det", "msp", "stl", "cin",
	"atl", "mia", "hou", "dal", "sat",
	"lax", "sfo", "sea", "phx", "den", "san",
}

// CityName returns the display name for a city id.
func CityName(id string) (string, bool) {
	info, ok := cities[id]
	return info.Name, ok
}

// CityRegion returns the parent region for a city id.
func CityRegion(id string) (string, bool) {
	info, ok := cities[id]
	return info.Region, ok
}

// KnownRegion reports whether the region name is one of the four tracked regions.
func KnownRegion(name string) bool {
	_, ok := RegionRespondents[name]
	return ok
}
