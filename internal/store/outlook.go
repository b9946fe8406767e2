package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/features"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/solar"
)

// ErrNoOutlook is returned when the outlook table is empty.
var ErrNoOutlook = errors.New("no outlook stored")

// OutlookBatch holds column data for native insert
type OutlookBatch struct {
	IssuedAt   *proto.ColDateTime
	Date       *proto.ColDate32
	F107       *proto.ColFloat32
	Ap         *proto.ColFloat32
	Kp         *proto.ColFloat32
	SourceFile *proto.ColStr
}

func NewOutlookBatch() *OutlookBatch {
	return &OutlookBatch{
		IssuedAt:   new(proto.ColDateTime),
		Date:       new(proto.ColDate32),
		F107:       new(proto.ColFloat32),
		Ap:         new(proto.ColFloat32),
		Kp:         new(proto.ColFloat32),
		SourceFile: new(proto.ColStr),
	}
}

func (b *OutlookBatch) Reset() {
	b.IssuedAt.Reset()
	b.Date.Reset()
	b.F107.Reset()
	b.Ap.Reset()
	b.Kp.Reset()
	b.SourceFile.Reset()
}

func (b *OutlookBatch) Len() int {
	return b.Date.Rows()
}

func (b *OutlookBatch) Input() proto.Input {
	return proto.Input{
		{Name: "issued_at", Data: b.IssuedAt},
		{Name: "date", Data: b.Date},
		{Name: "f107", Data: b.F107},
		{Name: "ap", Data: b.Ap},
		{Name: "kp", Data: b.Kp},
		{Name: "source_file", Data: b.SourceFile},
	}
}

// AddOutlook appends every day of o. Missing values are stored as NaN.
func (b *OutlookBatch) AddOutlook(o *solar.Outlook) {
	for _, d := range o.Days {
		b.IssuedAt.Append(o.IssuedAt)
		b.Date.Append(d.Date)
		b.F107.Append(float32(d.F107))
		b.Ap.Append(float32(d.Ap))
		b.Kp.Append(float32(d.Kp))
		b.SourceFile.Append(o.Source)
	}
}

// OutlookWriter inserts parsed outlooks.
type OutlookWriter struct {
	conn  Doer
	table string
}

func NewOutlookWriter(conn Doer, table string) *OutlookWriter {
	return &OutlookWriter{conn: conn, table: table}
}

// EnsureTable creates the outlook table if needed.
func (w *OutlookWriter) EnsureTable(ctx context.Context) error {
	return w.conn.Do(ctx, ch.Query{Body: OutlookDDL(w.table)})
}

// Flush inserts the batch and resets it.
func (w *OutlookWriter) Flush(ctx context.Context, batch *OutlookBatch) error {
	if batch.Len() == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (issued_at, date, f107, ap, kp, source_file) VALUES", w.table)
	if err := w.conn.Do(ctx, ch.Query{
		Body:  query,
		Input: batch.Input(),
	}); err != nil {
		return fmt.Errorf("insert outlook: %w", err)
	}
	batch.Reset()
	return nil
}

// OutlookReader loads the newest stored outlook.
type OutlookReader struct {
	conn  Doer
	table string
}

func NewOutlookReader(conn Doer, table string) *OutlookReader {
	return &OutlookReader{conn: conn, table: table}
}

// outlookResult collects result blocks into outlook days.
type outlookResult struct {
	issuedAt proto.ColDateTime
	date     proto.ColDate32
	f107     proto.ColFloat32
	ap       proto.ColFloat32
	kp       proto.ColFloat32
	source   proto.ColStr

	outlook solar.Outlook
}

func (r *outlookResult) results() proto.Results {
	return proto.Results{
		{Name: "issued_at", Data: &r.issuedAt},
		{Name: "date", Data: &r.date},
		{Name: "f107", Data: &r.f107},
		{Name: "ap", Data: &r.ap},
		{Name: "kp", Data: &r.kp},
		{Name: "source_file", Data: &r.source},
	}
}

// collect appends the current block; ch-go reuses the columns per block.
func (r *outlookResult) collect() {
	for i := 0; i < r.date.Rows(); i++ {
		r.outlook.IssuedAt = r.issuedAt.Row(i).UTC()
		r.outlook.Source = r.source.Row(i)
		r.outlook.Days = append(r.outlook.Days, solar.OutlookDay{
			Date: r.date.Row(i),
			F107: float64OrNaN(r.f107.Row(i)),
			Ap:   float64OrNaN(r.ap.Row(i)),
			Kp:   float64OrNaN(r.kp.Row(i)),
		})
	}
}

// Latest returns the most recently issued outlook, days in date order.
func (r *OutlookReader) Latest(ctx context.Context) (*solar.Outlook, error) {
	res := &outlookResult{}
	query := fmt.Sprintf(
		"SELECT issued_at, date, f107, ap, kp, source_file FROM %[1]s "+
			"WHERE issued_at = (SELECT max(issued_at) FROM %[1]s) ORDER BY date", r.table)

	if err := r.conn.Do(ctx, ch.Query{
		Body:   query,
		Result: res.results(),
		OnResult: func(ctx context.Context, block proto.Block) error {
			res.collect()
			return nil
		},
	}); err != nil {
		return nil, fmt.Errorf("select outlook: %w", err)
	}

	if len(res.outlook.Days) == 0 {
		return nil, ErrNoOutlook
	}
	return &res.outlook, nil
}

// LatestFeatureRow returns the feature row of the newest outlook, and the
// outlook it came from.
func (r *OutlookReader) LatestFeatureRow(ctx context.Context) (features.Row, *solar.Outlook, error) {
	o, err := r.Latest(ctx)
	if err != nil {
		return nil, nil, err
	}
	row, err := o.FeatureRow()
	if err != nil {
		return nil, nil, fmt.Errorf("outlook issued %s: %w", o.IssuedAt.Format(time.RFC3339), err)
	}
	return row, o, nil
}

func float64OrNaN(v float32) float64 {
	f := float64(v)
	if math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}
