package coords

import "strconv"

func formatPair(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', 3, 64) + ", " + strconv.FormatFloat(lng, 'f', 3, 64)
}
