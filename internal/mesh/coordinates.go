package mesh

import "math"

type Coordinates struct {
	Lat  float64
	Long float64
}

// DistanceTo is a flat-plane approximation; scenario areas are small
// enough that great-circle maths buys nothing.
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return math.Sqrt(math.Pow(c.Lat-other.Lat, 2) + math.Pow(c.Long-other.Long, 2))
}

func (c Coordinates) Equals(other Coordinates) bool {
	return c.Lat == other.Lat && c.Long == other.Long
}

func CreateCoordinates(lat float64, long float64) Coordinates {
	return Coordinates{Lat: lat, Long: long}
}

// RSSIAt maps link distance (metres) to a rough received power in dBm
// using a log-distance path-loss model: about -40 dBm at one metre,
// ~20 dB lost per decade. Close links land above -50, the mid band falls
// into [-80,-50], and far links drop below -80, which is what the scorer
// cares about.
func RSSIAt(distance float64) int {
	if distance < 1 {
		distance = 1
	}
	return int(-40 - 20*math.Log10(distance))
}
