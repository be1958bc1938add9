package dataset

import "time"

// Season is the four-way calendar season derived from a transaction month.
type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Fall   Season = "Fall"
)

// Seasons lists every season in calendar order starting with Winter.
var Seasons = []Season{Winter, Spring, Summer, Fall}

// SeasonOf maps a month to its season: Dec-Feb Winter, Mar-May Spring,
// Jun-Aug Summer, Sep-Nov Fall.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// Index returns the position of s in Seasons, or -1.
func (s Season) Index() int {
	for i, v := range Seasons {
		if v == s {
			return i
		}
	}
	return -1
}
