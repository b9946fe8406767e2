package solar

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// OutlookURL is the SWPC 27-day outlook text product.
const OutlookURL = "https://services.swpc.noaa.gov/text/27-day-outlook.txt"

// OutlookSource tags rows parsed from the SWPC product.
const OutlookSource = "NOAA SWPC 27-Day Outlook"

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseOutlook reads the 27-day outlook text format:
//
//	:Issued: 2025 Oct 06 0133 UTC
//	#  UTC      Radio Flux   Planetary   Largest
//	#  Date       10.7 cm     A Index    Kp Index
//	2025 Oct 06     150          15          4
//
// Comment and header lines are skipped. Zero data rows is an error.
func ParseOutlook(reader io.Reader) (*Outlook, error) {
	out := &Outlook{Source: OutlookSource}
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if out.IssuedAt.IsZero() {
			if ts, ok := parseIssued(line); ok {
				out.IssuedAt = ts
				continue
			}
		}

		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, ":") {
			continue
		}

		day, ok := parseOutlookLine(line)
		if !ok {
			continue
		}
		out.Days = append(out.Days, day)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out.Days) == 0 {
		return nil, fmt.Errorf("no rows parsed from 27-day outlook")
	}
	return out, nil
}

// parseIssued accepts ":Issued: YYYY Mon DD HHMM UTC" and "Issued YYYY-MM-DD".
func parseIssued(line string) (time.Time, bool) {
	if rest, ok := strings.CutPrefix(line, ":Issued:"); ok {
		fields := strings.Fields(rest)
		if len(fields) < 4 {
			return time.Time{}, false
		}
		year, err := strconv.Atoi(fields[0])
		if err != nil {
			return time.Time{}, false
		}
		month, ok := months[strings.ToLower(fields[1])]
		if !ok {
			month = time.January
		}
		day, err := strconv.Atoi(fields[2])
		if err != nil || len(fields[3]) != 4 {
			return time.Time{}, false
		}
		hh, err1 := strconv.Atoi(fields[3][:2])
		mm, err2 := strconv.Atoi(fields[3][2:])
		if err1 != nil || err2 != nil {
			return time.Time{}, false
		}
		return time.Date(year, month, day, hh, mm, 0, 0, time.UTC), true
	}

	idx := strings.Index(line, "Issued ")
	if idx < 0 {
		return time.Time{}, false
	}
	fields := strings.Fields(line[idx+len("Issued "):])
	if len(fields) == 0 {
		return time.Time{}, false
	}
	dateStr := strings.ReplaceAll(fields[0], "/", "-")
	ts, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// parseOutlookLine parses "YYYY Mon DD f107 ap kp".
func parseOutlookLine(line string) (OutlookDay, bool) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return OutlookDay{}, false
	}

	year, err := strconv.Atoi(fields[0])
	if err != nil || year < 1900 || year > 2100 {
		return OutlookDay{}, false
	}
	month, ok := months[strings.ToLower(fields[1])]
	if !ok {
		return OutlookDay{}, false
	}
	day, err := strconv.Atoi(fields[2])
	if err != nil || day < 1 || day > 31 {
		return OutlookDay{}, false
	}

	d := OutlookDay{
		Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		F107: parseIndex(fields[3]),
		Ap:   parseIndex(fields[4]),
		Kp:   parseIndex(fields[5]),
	}
	if math.IsNaN(d.F107) && math.IsNaN(d.Ap) && math.IsNaN(d.Kp) {
		return OutlookDay{}, false
	}
	return d, true
}

// parseIndex returns NaN for anything that is not a non-negative number.
func parseIndex(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
