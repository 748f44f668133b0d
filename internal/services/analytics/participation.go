package analytics

// Participation is the share of heavyweight constituents that are up.
func Participation(heavy map[string]float64) float64 {
	if len(heavy) == 0 {
		return 0
	}
	up := 0
	for _, v := range heavy {
		if v > 0 {
			up++
		}
	}
	return float64(up) / float64(len(heavy))
}
