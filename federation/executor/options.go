package executor

import (
	"time"

	"github.com/wbrown/janus-federation/federation/cost"
)

// ExecutorOptions configures plan execution
type ExecutorOptions struct {
	// Join strategy thresholds
	HashJoinThreshold int64 // Hash join when both sides are exact and the smaller is below this
	AskDegenerateRows int64 // A side reliably this small is hashed regardless of the other

	// Streaming defaults for sources that leave their own unset
	BufferSize   int           // Channel capacity between an async producer and its consumer
	CloseTimeout time.Duration // How long Close waits for a producer to acknowledge

	// Parallel execution options
	MaxUnionWorkers int // Workers opening Union branches (0 = NumCPU)

	Estimator *cost.Estimator // Cardinality estimator for join decisions (default: cost.NewEstimator())
}

// DefaultExecutorOptions returns the options used by NewExecutor
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		HashJoinThreshold: 1000,
		AskDegenerateRows: 1,
		BufferSize:        64,
		CloseTimeout:      500 * time.Millisecond,
		MaxUnionWorkers:   0,
	}
}
