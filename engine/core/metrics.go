package core

import "time"

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling average of pipeline tick time and outcome counters.
type Metrics struct {
	tickAVGCounter uint8
	msTimes        [AVG_COUNT]float64
	msAvg          float64

	Ticks     int64
	Completed int64
	Failed    int64
	Pending   int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Update(tickElapsed time.Duration) {
	ms := float64(tickElapsed) / float64(time.Millisecond)
	m.msTimes[m.tickAVGCounter] = ms
	if m.tickAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += m.msTimes[i]
		}
		m.msAvg = sum / float64(AVG_COUNT)
	}
	m.tickAVGCounter++
	m.tickAVGCounter %= AVG_COUNT
	m.Ticks++
}

// Record counts the outcome of one request step.
func (m *Metrics) Record(r Result) {
	switch r {
	case Success:
		m.Completed++
	case Pending:
		m.Pending++
	default:
		m.Failed++
	}
}

// TickTime is the average tick duration in milliseconds over the last AVG_COUNT ticks.
func (m *Metrics) TickTime() float64 {
	return m.msAvg
}
