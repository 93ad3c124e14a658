package models

// UnspecifiedLocation is the serialized key of the Unspecified attribution.
const UnspecifiedLocation = "UNSPECIFIED_LOCATION"

// Attribution is where a relevant document is filed: a gazetteer city or
// no particular location.
type Attribution struct {
	city        string
	unspecified bool
}

// Unspecified marks a relevant document without an identified city.
var Unspecified = Attribution{unspecified: true}

// CityAttribution files a document under the city with the given key.
func CityAttribution(key string) Attribution {
	return Attribution{city: key}
}

// IsUnspecified reports whether a is the Unspecified attribution.
func (a Attribution) IsUnspecified() bool {
	return a.unspecified
}

// City returns the city key, empty for Unspecified.
func (a Attribution) City() string {
	return a.city
}

// Key is the string form used in the output snapshot.
func (a Attribution) Key() string {
	if a.unspecified {
		return UnspecifiedLocation
	}
	return a.city
}

func (a Attribution) String() string {
	return a.Key()
}

// ParseAttribution is the inverse of Key.
func ParseAttribution(key string) Attribution {
	if key == UnspecifiedLocation {
		return Unspecified
	}
	return CityAttribution(key)
}
