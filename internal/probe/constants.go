package probe

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	ProgressInterval     = time.Second
	ProbabilityTolerance = 1e-5 // float32 model outputs widened to float64
)

// File permission constants.
const (
	directoryPermission = 0750
	logFilePermission   = 0600
)
