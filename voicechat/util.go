package voicechat

import "strconv"

// siPrefixes are the prefixes used by the human formatting functions.
var siPrefixes = []string{"", "K", "M", "G", "T"}

// hscale scales f down by powers of 1000 and returns the matching prefix.
func hscale(f float64) (float64, string) {
	i := 0
	for f >= 1e3 && i < len(siPrefixes)-1 {
		f /= 1e3
		i++
	}
	return f, siPrefixes[i]
}

// hbytes == "human bytes"
func hbytes(i uint64) string {
	if i < 1e3 {
		return strconv.FormatUint(i, 10) + "B"
	}
	f, p := hscale(float64(i))
	return strconv.FormatFloat(f, 'f', 2, 64) + p + "B"
}

// hcount == "human count"
func hcount(i uint64) string {
	if i < 1e3 {
		return strconv.FormatUint(i, 10)
	}
	f, p := hscale(float64(i))
	return strconv.FormatFloat(f, 'f', 2, 64) + p
}

// hrate == "human rate"
func hrate(f float64) string {
	f, p := hscale(f)
	return strconv.FormatFloat(f, 'f', 2, 64) + p
}
