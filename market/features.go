package market

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ComputeFeatures fills the named derived columns on a single symbol's bar
// series, in place. Warmup rows (fewer bars than the indicator period) get
// NaN; panel construction later drops rows with any NaN feature.
//
// Supported specs: log_ret, sma_N, ema_N, vol_N, rsi_N.
func ComputeFeatures(bars []Bar, specs []string) error {
	for _, spec := range specs {
		name, period, err := parseSpec(spec)
		if err != nil {
			return err
		}
		switch name {
		case "log_ret":
			logReturns(bars, spec)
		case "sma":
			sma(bars, spec, period)
		case "ema":
			ema(bars, spec, period)
		case "vol":
			rollingVol(bars, spec, period)
		case "rsi":
			rsi(bars, spec, period)
		default:
			return fmt.Errorf("unknown feature %q", spec)
		}
	}
	return nil
}

func parseSpec(spec string) (name string, period int, err error) {
	if spec == "log_ret" {
		return "log_ret", 0, nil
	}
	i := strings.LastIndex(spec, "_")
	if i < 0 {
		return "", 0, fmt.Errorf("unknown feature %q", spec)
	}
	period, err = strconv.Atoi(spec[i+1:])
	if err != nil || period < 1 {
		return "", 0, fmt.Errorf("feature %q: bad period", spec)
	}
	return spec[:i], period, nil
}

func logReturns(bars []Bar, col string) {
	for i := range bars {
		if i == 0 || bars[i-1].Close <= 0 || bars[i].Close <= 0 {
			bars[i].Features[col] = math.NaN()
			continue
		}
		bars[i].Features[col] = math.Log(bars[i].Close / bars[i-1].Close)
	}
}

func sma(bars []Bar, col string, period int) {
	sum := 0.0
	for i := range bars {
		sum += bars[i].Close
		if i >= period {
			sum -= bars[i-period].Close
		}
		if i >= period-1 {
			bars[i].Features[col] = sum / float64(period)
		} else {
			bars[i].Features[col] = math.NaN()
		}
	}
}

func ema(bars []Bar, col string, period int) {
	mult := 2.0 / float64(period+1)
	var val, warmup float64
	for i := range bars {
		switch {
		case i < period-1:
			warmup += bars[i].Close
			bars[i].Features[col] = math.NaN()
		case i == period-1:
			// Seed from the SMA of the warmup window.
			val = (warmup + bars[i].Close) / float64(period)
			bars[i].Features[col] = val
		default:
			val = (bars[i].Close-val)*mult + val
			bars[i].Features[col] = val
		}
	}
}

// rollingVol is the sample standard deviation of close-to-close log
// returns over the trailing window.
func rollingVol(bars []Bar, col string, period int) {
	rets := make([]float64, len(bars))
	for i := range bars {
		if i == 0 || bars[i-1].Close <= 0 || bars[i].Close <= 0 {
			rets[i] = math.NaN()
		} else {
			rets[i] = math.Log(bars[i].Close / bars[i-1].Close)
		}
	}
	for i := range bars {
		if i < period {
			bars[i].Features[col] = math.NaN()
			continue
		}
		window := rets[i-period+1 : i+1]
		mean := 0.0
		for _, r := range window {
			mean += r
		}
		mean /= float64(len(window))
		ss := 0.0
		for _, r := range window {
			d := r - mean
			ss += d * d
		}
		if len(window) > 1 {
			bars[i].Features[col] = math.Sqrt(ss / float64(len(window)-1))
		} else {
			bars[i].Features[col] = 0
		}
	}
}

func rsi(bars []Bar, col string, period int) {
	var avgGain, avgLoss float64
	for i := range bars {
		if i == 0 {
			bars[i].Features[col] = math.NaN()
			continue
		}
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		if i <= period {
			avgGain += gain
			avgLoss += loss
			if i < period {
				bars[i].Features[col] = math.NaN()
				continue
			}
			avgGain /= float64(period)
			avgLoss /= float64(period)
		} else {
			// Wilder smoothing.
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}

		if avgLoss == 0 {
			bars[i].Features[col] = 100
			continue
		}
		rs := avgGain / avgLoss
		bars[i].Features[col] = 100 - 100/(1+rs)
	}
}
