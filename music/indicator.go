package music

// NoStep is the current step while stopped: nothing is highlighted.
const NoStep = -1

// Indicator displays the current step. It is called from the scheduling
// goroutine and must not block.
type Indicator interface {
	UpdateStep(step int)
}

type IndicatorFunc func(step int)

func (f IndicatorFunc) UpdateStep(step int) {
	f(step)
}

type nopIndicator struct{}

func (nopIndicator) UpdateStep(int) {}
