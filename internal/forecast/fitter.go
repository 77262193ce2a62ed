package forecast

import (
	"time"

	forecaster "github.com/aouyang1/go-forecaster"
)

// fitter abstracts the underlying model so tests can substitute a fake.
type fitter interface {
	FitPredict(t []time.Time, y []float64, future []time.Time) (values, lower, upper []float64, err error)
}

// seriesFitter backs the engine with go-forecaster's trend+seasonality model.
type seriesFitter struct{}

func (seriesFitter) FitPredict(t []time.Time, y []float64, future []time.Time) ([]float64, []float64, []float64, error) {
	f, err := forecaster.New(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := f.Fit(t, y); err != nil {
		return nil, nil, nil, err
	}
	res, err := f.Predict(future)
	if err != nil {
		return nil, nil, nil, err
	}
	return res.Forecast, res.Lower, res.Upper, nil
}
