package analytics

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"financial-rag/internal/models"
)

// Dataset holds the loaded S&P 500 monthly series, ordered by date.
type Dataset struct {
	points []models.SP500Point
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"1/2/2006",
}

// Load reads the dataset from a CSV file. Column headers follow the upstream
// export (Date, SP500, Dividend, Earnings, Consumer Price Index, Long
// Interest Rate, Real Price, Real Dividend, Real Earnings, PE10).
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("csv %s has no data rows", path)
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[name] = i
	}
	need := []string{"Date", "SP500"}
	for _, name := range need {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("csv missing column %q", name)
		}
	}

	points := make([]models.SP500Point, 0, len(rows)-1)
	for _, row := range rows[1:] {
		date, err := parseDate(row[col["Date"]])
		if err != nil {
			return nil, err
		}
		p := models.SP500Point{
			Date:             date,
			SP500:            field(row, col, "SP500"),
			Dividend:         field(row, col, "Dividend"),
			Earnings:         field(row, col, "Earnings"),
			ConsumerPriceIdx: field(row, col, "Consumer Price Index"),
			LongInterestRate: field(row, col, "Long Interest Rate"),
			RealPrice:        field(row, col, "Real Price"),
			RealDividend:     field(row, col, "Real Dividend"),
			RealEarnings:     field(row, col, "Real Earnings"),
			PE10:             field(row, col, "PE10"),
		}
		points = append(points, p)
	}
	return FromPoints(points), nil
}

// FromPoints builds a dataset from already-parsed observations.
func FromPoints(points []models.SP500Point) *Dataset {
	sorted := make([]models.SP500Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return &Dataset{points: sorted}
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func field(row []string, col map[string]int, name string) float64 {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return 0
	}
	v, err := strconv.ParseFloat(row[i], 64)
	if err != nil {
		return 0
	}
	return v
}

// Len reports the number of observations.
func (d *Dataset) Len() int { return len(d.points) }

// Points returns the observations in date order, optionally restricted to
// [from, to]. Zero bounds are open. Callers get a copy.
func (d *Dataset) Points(from, to time.Time) []models.SP500Point {
	out := make([]models.SP500Point, 0, len(d.points))
	for _, p := range d.points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Summary describes the loaded range and headline statistics.
type Summary struct {
	Rows      int       `json:"rows"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Latest    float64   `json:"latest"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Mean      float64   `json:"mean"`
	LatestPE  float64   `json:"latest_pe10"`
}

// Summary computes headline statistics over the index level.
func (d *Dataset) Summary() Summary {
	if len(d.points) == 0 {
		return Summary{}
	}
	s := Summary{
		Rows:     len(d.points),
		Start:    d.points[0].Date,
		End:      d.points[len(d.points)-1].Date,
		Latest:   d.points[len(d.points)-1].SP500,
		LatestPE: d.points[len(d.points)-1].PE10,
		Min:      math.Inf(1),
		Max:      math.Inf(-1),
	}
	var sum float64
	for _, p := range d.points {
		sum += p.SP500
		s.Min = math.Min(s.Min, p.SP500)
		s.Max = math.Max(s.Max, p.SP500)
	}
	s.Mean = sum / float64(len(d.points))
	return s
}

// YearGrowth is the year-over-year change of the year-end index level.
type YearGrowth struct {
	Year      int     `json:"year"`
	Close     float64 `json:"close"`
	GrowthPct float64 `json:"growth_pct"`
}

// YearOverYearGrowth reduces the series to year-end closes and their growth.
func (d *Dataset) YearOverYearGrowth() []YearGrowth {
	closes := map[int]float64{}
	years := []int{}
	for _, p := range d.points {
		y := p.Date.Year()
		if _, seen := closes[y]; !seen {
			years = append(years, y)
		}
		closes[y] = p.SP500 // points are date-ordered, last write wins
	}
	sort.Ints(years)

	out := make([]YearGrowth, 0, len(years))
	for i, y := range years {
		g := YearGrowth{Year: y, Close: closes[y]}
		if i > 0 && closes[years[i-1]] != 0 {
			g.GrowthPct = (closes[y] - closes[years[i-1]]) / closes[years[i-1]] * 100
		}
		out = append(out, g)
	}
	return out
}

// CorrelationMatrix computes Pearson correlations between the dataset
// columns, keyed by column name.
func (d *Dataset) CorrelationMatrix() map[string]map[string]float64 {
	cols := map[string][]float64{
		"sp500":              {},
		"dividend":           {},
		"earnings":           {},
		"consumer_price_index": {},
		"long_interest_rate": {},
	}
	for _, p := range d.points {
		cols["sp500"] = append(cols["sp500"], p.SP500)
		cols["dividend"] = append(cols["dividend"], p.Dividend)
		cols["earnings"] = append(cols["earnings"], p.Earnings)
		cols["consumer_price_index"] = append(cols["consumer_price_index"], p.ConsumerPriceIdx)
		cols["long_interest_rate"] = append(cols["long_interest_rate"], p.LongInterestRate)
	}

	matrix := map[string]map[string]float64{}
	for a, va := range cols {
		matrix[a] = map[string]float64{}
		for b, vb := range cols {
			matrix[a][b] = pearson(va, vb)
		}
	}
	return matrix
}

// DecadeStat summarizes index performance for one decade.
type DecadeStat struct {
	Decade    int     `json:"decade"`
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
	ChangePct float64 `json:"change_pct"`
	Mean      float64 `json:"mean"`
}

// DecadePerformance groups the series by decade and reports open, close,
// change, and mean level.
func (d *Dataset) DecadePerformance() []DecadeStat {
	type agg struct {
		open, close, sum float64
		count            int
	}
	byDecade := map[int]*agg{}
	decades := []int{}
	for _, p := range d.points {
		dec := p.Date.Year() / 10 * 10
		a, ok := byDecade[dec]
		if !ok {
			a = &agg{open: p.SP500}
			byDecade[dec] = a
			decades = append(decades, dec)
		}
		a.close = p.SP500
		a.sum += p.SP500
		a.count++
	}
	sort.Ints(decades)

	out := make([]DecadeStat, 0, len(decades))
	for _, dec := range decades {
		a := byDecade[dec]
		st := DecadeStat{Decade: dec, Open: a.open, Close: a.close, Mean: a.sum / float64(a.count)}
		if a.open != 0 {
			st.ChangePct = (a.close - a.open) / a.open * 100
		}
		out = append(out, st)
	}
	return out
}

// VolatilityReport carries the monthly-return volatility, annualized, plus
// the most volatile window observed.
type VolatilityReport struct {
	Monthly    float64   `json:"monthly_volatility"`
	Annualized float64   `json:"annualized_volatility"`
	PeakWindow time.Time `json:"peak_window_start"`
	PeakValue  float64   `json:"peak_window_volatility"`
}

// Volatility computes the standard deviation of monthly returns and scans a
// rolling window for the most volatile stretch.
func (d *Dataset) Volatility(window int) VolatilityReport {
	if window <= 1 {
		window = 12
	}
	returns := make([]float64, 0, len(d.points))
	for i := 1; i < len(d.points); i++ {
		prev := d.points[i-1].SP500
		if prev == 0 {
			continue
		}
		returns = append(returns, (d.points[i].SP500-prev)/prev)
	}
	if len(returns) == 0 {
		return VolatilityReport{}
	}

	rep := VolatilityReport{Monthly: stddev(returns)}
	rep.Annualized = rep.Monthly * math.Sqrt(12)

	for i := 0; i+window <= len(returns); i++ {
		v := stddev(returns[i : i+window])
		if v > rep.PeakValue {
			rep.PeakValue = v
			rep.PeakWindow = d.points[i+1].Date
		}
	}
	return rep
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	ma, mb := mean(a), mean(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		cov += (a[i] - ma) * (b[i] - mb)
		va += (a[i] - ma) * (a[i] - ma)
		vb += (b[i] - mb) * (b[i] - mb)
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}
