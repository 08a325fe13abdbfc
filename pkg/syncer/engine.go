package syncer

import (
	"context"
	"fmt"

	"github.com/olapsync/olap_syncer/pkg/source"
	"github.com/olapsync/olap_syncer/pkg/target"
)

// Engine turns fetched source rows into the records to insert for one
// target. The insert-only engine is pure; the collapsing engine additionally
// reads the target store to tombstone prior versions.
type Engine interface {
	Transform(ctx context.Context, rows []source.Row) ([]target.Record, error)
}

func newEngine(tgt *Target, pool *target.Pool) Engine {
	if tgt.Collapsing {
		return &collapsingEngine{tgt: tgt, pool: pool}
	}
	return &insertOnlyEngine{tgt: tgt}
}

type insertOnlyEngine struct {
	tgt *Target
}

func (e *insertOnlyEngine) Transform(ctx context.Context, rows []source.Row) ([]target.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	records := make([]target.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, e.tgt.serialize(row))
	}
	return records, nil
}

// collapsingEngine simulates updates on the append-only store: for every
// incoming row it re-emits the currently-live record with sign -1, then the
// fresh row with sign +1 and a version one above the prior.
type collapsingEngine struct {
	tgt  *Target
	pool *target.Pool
}

func (e *collapsingEngine) Transform(ctx context.Context, rows []source.Row) ([]target.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	tgt := e.tgt

	news := make([]target.Record, 0, len(rows))
	pks := make([]string, 0, len(rows))
	var minDate, maxDate string
	for _, row := range rows {
		rec := tgt.serialize(row)
		news = append(news, rec)
		pks = append(pks, fmt.Sprintf("%v", rec[tgt.PKColumn]))

		if tgt.DateColumn != "" {
			date := fmt.Sprintf("%v", rec[tgt.DateColumn])
			if minDate == "" || date < minDate {
				minDate = date
			}
			if date > maxDate {
				maxDate = date
			}
		}
	}

	olds, err := e.lookupFinalVersions(ctx, pks, minDate, maxDate)
	if err != nil {
		return nil, err
	}

	prior := make(map[string]int64, len(olds))
	for _, old := range olds {
		old[tgt.SignColumn] = -1
		if tgt.VersionColumn != "" {
			prior[fmt.Sprintf("%v", old[tgt.PKColumn])] = old.IntValue(tgt.VersionColumn)
		}
	}
	if tgt.VersionColumn != "" {
		for _, rec := range news {
			rec[tgt.VersionColumn] = prior[fmt.Sprintf("%v", rec[tgt.PKColumn])] + 1
		}
	}

	// compensating records first, then the corrected new ones
	return append(olds, news...), nil
}

func (e *collapsingEngine) lookupFinalVersions(ctx context.Context, pks []string, minDate, maxDate string) ([]target.Record, error) {
	tgt := e.tgt
	client, err := e.pool.PickRead(tgt.ReadDBAliases)
	if err != nil {
		return nil, err
	}

	q := target.Query{
		Table:         tgt.Table,
		Columns:       tgt.columnsWithoutSign(),
		PKColumn:      tgt.PKColumn,
		PKs:           pks,
		VersionColumn: tgt.VersionColumn,
		Final:         tgt.VersionColumn == "",
	}
	if tgt.DateColumn != "" && minDate != "" {
		q.DateColumn = tgt.DateColumn
		q.MinDate = minDate
		q.MaxDate = maxDate
	}
	return client.Select(ctx, q)
}

// serialize projects a source row onto the target columns and applies the
// default sign and version.
func (t *Target) serialize(row source.Row) target.Record {
	rec := make(target.Record, len(t.Columns))
	for _, col := range t.Columns {
		if v, ok := row[col]; ok {
			rec[col] = v
		}
	}
	if t.SignColumn != "" {
		rec[t.SignColumn] = 1
	}
	if t.VersionColumn != "" {
		rec[t.VersionColumn] = int64(1)
	}
	return rec
}
