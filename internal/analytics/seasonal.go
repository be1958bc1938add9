package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/retail-analyst/server/internal/dataset"
)

const (
	yoyThreshold       = 0.20
	deviationThreshold = 2.0
)

// SeasonalCell is total sales for one season in one year.
type SeasonalCell struct {
	Season        dataset.Season `json:"season"`
	Year          int            `json:"year"`
	Total         float64        `json:"total"`
	YoYChange     *float64       `json:"yoy_change_pct,omitempty"`
	UnusualChange bool           `json:"unusual_change,omitempty"`
	Deviation     bool           `json:"significant_deviation,omitempty"`
}

// SeasonalAnomalies is the extra output of the anomaly variant.
type SeasonalAnomalies struct {
	SeasonAverage map[dataset.Season]float64 `json:"season_average"`
	Growth        []SeasonalCell             `json:"unusual_growth"`
	Decline       []SeasonalCell             `json:"unusual_decline"`
	Deviations    []SeasonalCell             `json:"significant_deviations"`
	PeakSeason    dataset.Season             `json:"peak_season,omitempty"`
	Summary       string                     `json:"summary"`
}

// SeasonalTrends is the season by year sales matrix. Cells are ordered by
// season (Winter first) then year; a season without sales in a year has no cell.
type SeasonalTrends struct {
	Years   []int              `json:"years"`
	Cells   []SeasonalCell     `json:"cells"`
	Anomaly *SeasonalAnomalies `json:"anomaly,omitempty"`
}

// SeasonalTrends aggregates total cost by season and year. The "anomaly"
// variant adds year-over-year change, per-season averages and flags.
func (c *Catalog) SeasonalTrends(ds *dataset.Dataset, v string) (*SeasonalTrends, error) {
	mode, err := variant(v, VariantAnomaly)
	if err != nil {
		return nil, err
	}
	if err := nonEmpty(ds); err != nil {
		return nil, err
	}

	type key struct {
		season dataset.Season
		year   int
	}
	totals := map[key]float64{}
	years := map[int]struct{}{}
	for _, r := range ds.Records() {
		totals[key{r.Season, r.Year}] += r.Cost
		years[r.Year] = struct{}{}
	}

	out := &SeasonalTrends{}
	for y := range years {
		out.Years = append(out.Years, y)
	}
	sort.Ints(out.Years)
	for _, s := range dataset.Seasons {
		for _, y := range out.Years {
			if t, ok := totals[key{s, y}]; ok {
				out.Cells = append(out.Cells, SeasonalCell{Season: s, Year: y, Total: t})
			}
		}
	}
	if mode == VariantAnomaly {
		out.Anomaly = detectSeasonalAnomalies(out)
	}
	return out, nil
}

func detectSeasonalAnomalies(st *SeasonalTrends) *SeasonalAnomalies {
	an := &SeasonalAnomalies{SeasonAverage: map[dataset.Season]float64{}}

	bySeason := map[dataset.Season][]int{}
	for i, cell := range st.Cells {
		bySeason[cell.Season] = append(bySeason[cell.Season], i)
	}
	for _, s := range dataset.Seasons {
		idx := bySeason[s]
		if len(idx) == 0 {
			continue
		}
		vals := make([]float64, len(idx))
		for j, i := range idx {
			vals[j] = st.Cells[i].Total
		}
		avg, sd := mean(vals), stddev(vals, 1)
		an.SeasonAverage[s] = avg

		for j, i := range idx {
			cell := &st.Cells[i]
			if j > 0 {
				prev := st.Cells[idx[j-1]]
				if prev.Year == cell.Year-1 && prev.Total != 0 {
					pct := (cell.Total - prev.Total) / prev.Total * 100
					cell.YoYChange = &pct
					cell.UnusualChange = math.Abs(pct) > yoyThreshold*100
				}
			}
			if sd > 0 && math.Abs(cell.Total-avg) > deviationThreshold*sd {
				cell.Deviation = true
			}
		}
	}
	for _, cell := range st.Cells {
		if cell.UnusualChange {
			if *cell.YoYChange > 0 {
				an.Growth = append(an.Growth, cell)
			} else {
				an.Decline = append(an.Decline, cell)
			}
		}
		if cell.Deviation {
			an.Deviations = append(an.Deviations, cell)
		}
	}
	an.PeakSeason = peakSeason(st)
	an.Summary = seasonalSummary(an)
	return an
}

// peakSeason returns the season with the highest total in every year, or "".
func peakSeason(st *SeasonalTrends) dataset.Season {
	best := map[int]SeasonalCell{}
	for _, cell := range st.Cells {
		if b, ok := best[cell.Year]; !ok || cell.Total > b.Total {
			best[cell.Year] = cell
		}
	}
	var peak dataset.Season
	for _, y := range st.Years {
		s := best[y].Season
		if peak == "" {
			peak = s
		} else if peak != s {
			return ""
		}
	}
	return peak
}

func seasonalSummary(an *SeasonalAnomalies) string {
	var b strings.Builder
	if len(an.Growth) == 0 && len(an.Decline) == 0 {
		b.WriteString("No season shows a year-over-year change above 20%.")
	} else {
		if len(an.Growth) > 0 {
			fmt.Fprintf(&b, "Unusual growth: %s.", describeCells(an.Growth, true))
		}
		if len(an.Decline) > 0 {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "Unusual decline: %s.", describeCells(an.Decline, true))
		}
	}
	b.WriteString(" ")
	if len(an.Deviations) == 0 {
		b.WriteString("No season deviates from its average by more than two standard deviations.")
	} else {
		fmt.Fprintf(&b, "Significant deviation from the seasonal average: %s.", describeCells(an.Deviations, false))
	}
	b.WriteString(" ")
	if an.PeakSeason != "" {
		fmt.Fprintf(&b, "%s is the peak season in every year.", an.PeakSeason)
	} else {
		b.WriteString("No single season is the peak across all years.")
	}
	return b.String()
}

func describeCells(cells []SeasonalCell, withChange bool) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		if withChange && c.YoYChange != nil {
			parts[i] = fmt.Sprintf("%s %d (%+.1f%%)", c.Season, c.Year, *c.YoYChange)
		} else {
			parts[i] = fmt.Sprintf("%s %d", c.Season, c.Year)
		}
	}
	return strings.Join(parts, ", ")
}
