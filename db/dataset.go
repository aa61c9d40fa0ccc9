package db

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/convrate/dashboard/abtest"
)

// LoadDataset assembles a dataset from the variations and daily_counts
// tables. A variation with a null id is the original.
func LoadDataset(ctx context.Context, db *pgxpool.Pool) (*abtest.ChartData, error) {
	ret := &abtest.ChartData{}
	var id *int
	var name string
	_, err := db.QueryFunc(ctx, `SELECT id, name FROM variations ORDER BY position, name`,
		[]any{}, []any{&id, &name},
		func(_ pgx.QueryFuncRow) error {
			v := abtest.Variation{Name: name}
			if id != nil {
				i := *id
				v.ID = &i
			}
			ret.Variations = append(ret.Variations, v)
			return nil
		})
	if err != nil {
		return nil, err
	}
	days := map[string]int{}
	var date, variation string
	var visits, conversions int
	_, err = db.QueryFunc(ctx, `SELECT to_char(day, 'YYYY-MM-DD'), coalesce(variation::text, '0'), visits, conversions FROM daily_counts ORDER BY day`,
		[]any{}, []any{&date, &variation, &visits, &conversions},
		func(_ pgx.QueryFuncRow) error {
			i, ok := days[date]
			if !ok {
				i = len(ret.Data)
				days[date] = i
				ret.Data = append(ret.Data, abtest.DailyData{
					Date:        date,
					Visits:      map[string]int{},
					Conversions: map[string]int{},
				})
			}
			ret.Data[i].Visits[variation] += visits
			ret.Data[i].Conversions[variation] += conversions
			return nil
		})
	if err != nil {
		return nil, err
	}
	if err := abtest.Validate(ret); err != nil {
		return nil, err
	}
	return ret, nil
}
