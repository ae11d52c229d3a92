package reactive

// DefaultMaxRuns is the default number of times one job may run within a
// single flush.
const DefaultMaxRuns = 100

// BudgetConfig configures a Budget.
type BudgetConfig struct {
	// MaxRunsPerJob caps runs of one job per flush. Zero means DefaultMaxRuns.
	MaxRunsPerJob int

	// MaxRunsPerFlush caps all job runs per flush. Zero means no limit.
	MaxRunsPerFlush int
}

// Budget protects a flush against runaway re-entrant effects, such as an
// effect writing a property it also reads.
type Budget struct {
	maxPerJob   int
	maxPerFlush int

	runs     map[uint64]int
	total    int
	exceeded int
}

// BudgetStats reports usage within the current flush.
type BudgetStats struct {
	RunsThisFlush int
	Exceeded      int
}

// NewBudget creates a Budget.
func NewBudget(cfg BudgetConfig) *Budget {
	if cfg.MaxRunsPerJob <= 0 {
		cfg.MaxRunsPerJob = DefaultMaxRuns
	}
	return &Budget{
		maxPerJob:   cfg.MaxRunsPerJob,
		maxPerFlush: cfg.MaxRunsPerFlush,
		runs:        make(map[uint64]int),
	}
}

// Allow records a run of job id and reports whether it is within budget.
func (b *Budget) Allow(id uint64) bool {
	if b == nil {
		return true
	}
	if b.maxPerFlush > 0 && b.total >= b.maxPerFlush {
		b.exceeded++
		return false
	}
	if b.runs[id] >= b.maxPerJob {
		b.exceeded++
		return false
	}
	b.runs[id]++
	b.total++
	return true
}

// ResetTick clears per-flush counters.
func (b *Budget) ResetTick() {
	if b == nil {
		return
	}
	clear(b.runs)
	b.total = 0
	b.exceeded = 0
}

// Stats returns the counters of the current flush.
func (b *Budget) Stats() BudgetStats {
	if b == nil {
		return BudgetStats{}
	}
	return BudgetStats{RunsThisFlush: b.total, Exceeded: b.exceeded}
}
