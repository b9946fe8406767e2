package solar

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleOutlook builds a product text with n day rows starting 2025-10-06.
func sampleOutlook(n int) string {
	var b strings.Builder
	b.WriteString(":Product: 27-day Space Weather Outlook Table 27DO.txt\n")
	b.WriteString(":Issued: 2025 Oct 06 0133 UTC\n")
	b.WriteString("# Prepared by the US Dept. of Commerce, NOAA, Space Weather Prediction Center\n")
	b.WriteString("#\n#      27-day Space Weather Outlook Table\n#                Issued 2025-10-06\n#\n")
	b.WriteString("#   UTC      Radio Flux   Planetary   Largest\n")
	b.WriteString("#  Date       10.7 cm     A Index    Kp Index\n")
	start := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		fmt.Fprintf(&b, "%d %s %02d     %d          %d          %d\n",
			d.Year(), d.Format("Jan"), d.Day(), 140+i, 5+i%3, 2+i%4)
	}
	return b.String()
}

func TestParseOutlook(t *testing.T) {
	out, err := ParseOutlook(strings.NewReader(sampleOutlook(27)))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 10, 6, 1, 33, 0, 0, time.UTC), out.IssuedAt)
	require.Len(t, out.Days, 27)

	first := out.Days[0]
	assert.Equal(t, time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 140.0, first.F107)
	assert.Equal(t, 5.0, first.Ap)
	assert.Equal(t, 2.0, first.Kp)

	last := out.Days[26]
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), last.Date)
}

func TestParseOutlook_PlainIssued(t *testing.T) {
	text := "# Issued 2024-03-02\n2024 Mar 02 120 8 3\n"
	out, err := ParseOutlook(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), out.IssuedAt)
	assert.Len(t, out.Days, 1)
}

func TestParseOutlook_NoRows(t *testing.T) {
	_, err := ParseOutlook(strings.NewReader(":Issued: 2025 Oct 06 0133 UTC\n# nothing\n"))
	assert.Error(t, err)
}

func TestFeatureColumns(t *testing.T) {
	cols := FeatureColumns()
	require.Len(t, cols, 54)
	assert.Equal(t, "f107_d1", cols[0])
	assert.Equal(t, "f107_d27", cols[26])
	assert.Equal(t, "ap_d1", cols[27])
	assert.Equal(t, "ap_d27", cols[53])

	targets := TargetColumns()
	require.Len(t, targets, 27)
	assert.Equal(t, "kp_d27", targets[26])
}

func TestFeatureRow_DerivesApFromKp(t *testing.T) {
	out, err := ParseOutlook(strings.NewReader(sampleOutlook(27)))
	require.NoError(t, err)
	out.Days[3].Ap = math.NaN()
	out.Days[3].Kp = 2.5
	out.Days[4].Ap = math.NaN()
	out.Days[4].Kp = math.NaN()

	row, err := out.FeatureRow()
	require.NoError(t, err)
	assert.Len(t, row, 54)
	assert.Equal(t, 140.0, row["f107_d1"])
	assert.Equal(t, 50.0, row["ap_d4"])
	assert.True(t, math.IsNaN(row["ap_d5"]))
}

func TestFeatureRow_TooShort(t *testing.T) {
	out, err := ParseOutlook(strings.NewReader(sampleOutlook(10)))
	require.NoError(t, err)

	_, err = out.FeatureRow()
	assert.Error(t, err)
	_, err = out.TargetRow()
	assert.Error(t, err)
}

func TestTargetRow_Clips(t *testing.T) {
	out, err := ParseOutlook(strings.NewReader(sampleOutlook(27)))
	require.NoError(t, err)
	out.Days[0].Kp = 12

	row, err := out.TargetRow()
	require.NoError(t, err)
	assert.Equal(t, 9.0, row["kp_d1"])
}
