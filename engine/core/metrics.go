package core

import "sync"

const AVG_COUNT uint8 = 30

type MetricsState struct {
	mu sync.Mutex

	ImportAVGCounter    uint8
	MStimes             [AVG_COUNT]float64
	MSavg               float64
	ImportsRun          int64
	ImportsSkipped      int64
	ImportsFailed       int64
	AccumulatedImportMS float64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

// MetricsImportCompleted records a finished importer invocation and folds its
// duration into the rolling average.
func MetricsImportCompleted(elapsedMS float64) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	metricsState.MStimes[metricsState.ImportAVGCounter] = elapsedMS
	if metricsState.ImportAVGCounter == AVG_COUNT-1 {
		metricsState.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			metricsState.MSavg += metricsState.MStimes[i]
		}
		metricsState.MSavg /= float64(AVG_COUNT)
	}
	metricsState.ImportAVGCounter++
	metricsState.ImportAVGCounter %= AVG_COUNT

	metricsState.AccumulatedImportMS += elapsedMS
	metricsState.ImportsRun++
}

func MetricsImportSkipped() {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	metricsState.ImportsSkipped++
	metricsState.mu.Unlock()
}

func MetricsImportFailed() {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	metricsState.ImportsFailed++
	metricsState.mu.Unlock()
}

// MetricsImports returns (run, skipped, failed) counters.
func MetricsImports() (int64, int64, int64) {
	if metricsState == nil {
		return 0, 0, 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.ImportsRun, metricsState.ImportsSkipped, metricsState.ImportsFailed
}

func MetricsImportTime() float64 {
	if metricsState == nil {
		return 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.MSavg
}
