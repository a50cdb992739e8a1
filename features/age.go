package features

const (
	ageMin       = 18.0
	ageMax       = 70.0
	ageBandCount = 8

	// AgeBandUnknown is assigned to ages outside [18, 70].
	AgeBandUnknown = "unknown"
)

// AgeBandLabels are the Sturges bands in ascending order.
var AgeBandLabels = []string{
	"18–24", "25–31", "32–38", "39–45", "46–52", "53–59", "60–66", "67–70",
}

// AgeBand places age into one of eight equal-width bands over [18, 70]. Band edges are
// 18, 24.5, 31, 37.5, 44, 50.5, 57, 63.5, 70; each band is closed on the right and the
// first one also includes 18. Labels follow the edge position, so 38 lands in "39–45".
func AgeBand(age int) string {
	a := float64(age)
	if a < ageMin || a > ageMax {
		return AgeBandUnknown
	}
	width := (ageMax - ageMin) / ageBandCount
	for i := 0; i < ageBandCount; i++ {
		upper := ageMin + width*float64(i+1)
		if a <= upper {
			return AgeBandLabels[i]
		}
	}
	return AgeBandLabels[ageBandCount-1]
}
