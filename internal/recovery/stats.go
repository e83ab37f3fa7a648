package recovery

import "github.com/jstrand/chatctl/internal/circuitbreaker"

// FunctionStats breaks down the ledger for one function name.
type FunctionStats struct {
	Count      int            `json:"count"`
	Strategies map[string]int `json:"strategies"`
}

// Stats is a derived view over the ledger and the breaker registry. It is
// never stored; Manager.Stats recomputes it on every call.
type Stats struct {
	TotalSuccesses int                      `json:"total_successes"`
	TotalErrors    int                      `json:"total_errors"`
	SuccessRate    float64                  `json:"success_rate"`
	Functions      map[string]FunctionStats `json:"functions"`
	Breakers       []circuitbreaker.Status  `json:"breakers"`
}

// computeStats aggregates the given records. The success rate is a
// percentage in [0, 100]; an empty ledger yields 0.
func computeStats(records []Record, breakers []circuitbreaker.Status) Stats {
	stats := Stats{
		Functions: make(map[string]FunctionStats),
		Breakers:  breakers,
	}

	for _, r := range records {
		if r.Outcome == OutcomeSuccess {
			stats.TotalSuccesses++
		} else {
			stats.TotalErrors++
		}

		fs, ok := stats.Functions[r.Function]
		if !ok {
			fs = FunctionStats{Strategies: make(map[string]int)}
		}
		fs.Count++
		fs.Strategies[r.Strategy]++
		stats.Functions[r.Function] = fs
	}

	if total := stats.TotalSuccesses + stats.TotalErrors; total > 0 {
		stats.SuccessRate = 100 * float64(stats.TotalSuccesses) / float64(total)
	}
	return stats
}
