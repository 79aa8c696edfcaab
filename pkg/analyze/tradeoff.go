package analyze

import (
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/store"
)

// TradeOff characterizes the exchange rate between two objectives across a
// Pareto front: how much of B a planner gives up, on average, per unit of A
// saved when stepping between neighboring front members.
type TradeOff struct {
	A string `json:"a"`
	B string `json:"b"`

	// Rate is the mean of |dB/dA| over consecutive front members ordered
	// by A. On a true front B rises as A falls, so the rate is reported
	// as a positive exchange price.
	Rate float64 `json:"rate"`

	// Samples is the number of member pairs the rate was averaged over.
	Samples int `json:"samples"`
}

// FrontTradeOff computes pairwise objective trade-offs across the records
// of one Pareto front. All records must share one cost vector length; at
// least two records are required for any rate to exist.
func FrontTradeOff(recs []*store.PathRecord) ([]TradeOff, error) {
	if len(recs) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"trade-off analysis needs at least 2 records, got %d", len(recs))
	}
	k := len(recs[0].Cost)
	for _, rec := range recs {
		if len(rec.Cost) != k {
			return nil, errors.New(errors.ErrCodeInvalidConfig,
				"record %s has %d cost components, expected %d", rec.ID, len(rec.Cost), k)
		}
	}

	var out []TradeOff
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			if a == b {
				continue
			}
			rate, n := pairRate(recs, a, b)
			if n == 0 {
				continue
			}
			out = append(out, TradeOff{
				A:       componentName(recs[0], a),
				B:       componentName(recs[0], b),
				Rate:    rate,
				Samples: n,
			})
		}
	}
	return out, nil
}

// pairRate averages |dB/dA| over consecutive records ordered by component
// a. Pairs with equal a-components carry no rate and are skipped.
func pairRate(recs []*store.PathRecord, a, b int) (float64, int) {
	ordered := make([]*store.PathRecord, len(recs))
	copy(ordered, recs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cost[a] < ordered[j].Cost[a]
	})

	var rates []float64
	for i := 1; i < len(ordered); i++ {
		da := ordered[i].Cost[a] - ordered[i-1].Cost[a]
		if da == 0 {
			continue
		}
		db := ordered[i].Cost[b] - ordered[i-1].Cost[b]
		if db < 0 {
			db = -db
		}
		rates = append(rates, db/da)
	}
	if len(rates) == 0 {
		return 0, 0
	}
	mean, err := stats.Mean(rates)
	if err != nil {
		return 0, 0
	}
	return mean, len(rates)
}

func componentName(rec *store.PathRecord, i int) string {
	if i < len(rec.Objectives) {
		return rec.Objectives[i]
	}
	return "objective_" + strconv.Itoa(i)
}
