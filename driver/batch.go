package driver

import (
	"fmt"

	"go.uber.org/zap"

	"episim/infection"
	"episim/sim"
	"episim/vaccine"
)

// Options mirrors server.Options for reuse in headless mode, plus the number
// of independent runs to average over.
type Options struct {
	Runs     int
	BaseSeed uint64
	Cfg      sim.Config
	PopCfg   sim.PopulationConfig
}

// Summary aggregates the per-run outcomes of a batch.
type Summary struct {
	Runs int

	MeanTotalInfections float64
	MeanPeakInfected    float64
	MeanPeakDay         float64
	MeanDead            float64
	MeanRecovered       float64
	MeanVaccinated      float64

	MinPeakInfected int
	MaxPeakInfected int
}

// Run executes Runs independent simulations headlessly, each with its own
// seed and population, and averages the outcomes. Wall-clock speed is the
// only difference from the streaming path: both go through StartRunner.
func Run(disease *infection.DiseaseConfig, selectors infection.Selectors, vaccines *vaccine.Vaccines, setter *infection.ImmunitySetter, opt Options, log *zap.Logger) (Summary, error) {
	if opt.Runs <= 0 {
		return Summary{}, fmt.Errorf("batch driver requires runs > 0")
	}

	sum := Summary{Runs: opt.Runs}
	for i := 0; i < opt.Runs; i++ {
		cfg := opt.Cfg
		cfg.Seed = opt.BaseSeed + uint64(i)

		rng := infection.NewRNG(cfg.Seed)
		people, err := sim.GeneratePopulation(opt.PopCfg, rng)
		if err != nil {
			return Summary{}, fmt.Errorf("run %d: %w", i, err)
		}
		setter.SetImmunity(people, rng)

		simulator := sim.NewSimulator(cfg, disease, selectors, vaccines, people, log)
		events, _, wait := sim.StartRunner(simulator, log)

		var days []sim.DayStats
		completed := false
		for ev := range events {
			if done, ok := ev.(sim.DoneEvent); ok {
				days = done.Days
				completed = done.Completed
			}
		}
		wait()
		if !completed {
			return Summary{}, fmt.Errorf("run %d did not complete", i)
		}

		total, peak, peakDay := 0, 0, 0
		for _, d := range days {
			total += d.NewInfections
			if d.Infected > peak {
				peak = d.Infected
				peakDay = d.Day
			}
		}
		last := sim.DayStats{}
		if len(days) > 0 {
			last = days[len(days)-1]
		}

		sum.MeanTotalInfections += float64(total)
		sum.MeanPeakInfected += float64(peak)
		sum.MeanPeakDay += float64(peakDay)
		sum.MeanDead += float64(last.Dead)
		sum.MeanRecovered += float64(last.Recovered)
		sum.MeanVaccinated += float64(last.Vaccinated)
		if i == 0 || peak < sum.MinPeakInfected {
			sum.MinPeakInfected = peak
		}
		if peak > sum.MaxPeakInfected {
			sum.MaxPeakInfected = peak
		}

		log.Info("batch run complete",
			zap.Int("run", i),
			zap.Uint64("seed", cfg.Seed),
			zap.Int("total_infections", total),
			zap.Int("peak_infected", peak),
			zap.Int("dead", last.Dead))
	}

	n := float64(opt.Runs)
	sum.MeanTotalInfections /= n
	sum.MeanPeakInfected /= n
	sum.MeanPeakDay /= n
	sum.MeanDead /= n
	sum.MeanRecovered /= n
	sum.MeanVaccinated /= n
	return sum, nil
}

// Print writes a human-readable batch summary to stdout.
func (s Summary) Print() {
	fmt.Println("=== Batch Summary ===")
	fmt.Printf("Runs: %d\n", s.Runs)
	fmt.Printf("Mean total infections: %.1f\n", s.MeanTotalInfections)
	fmt.Printf("Mean peak: %.1f infected on day %.1f (min %d, max %d)\n",
		s.MeanPeakInfected, s.MeanPeakDay, s.MinPeakInfected, s.MaxPeakInfected)
	fmt.Printf("Mean dead: %.1f  mean recovered: %.1f  mean vaccinated: %.1f\n",
		s.MeanDead, s.MeanRecovered, s.MeanVaccinated)
}
