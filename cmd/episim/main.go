package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"episim/data"
	"episim/driver"
	"episim/infection"
	"episim/server"
	"episim/sim"
	"episim/vaccine"
)

var (
	flagDays           int
	flagPeople         int
	flagSeed           uint64
	flagWorkers        int
	flagContacts       float64
	flagInitial        int
	flagVariant        string
	flagVaccinationDay int
	flagVaccine        string
	flagCoverage       float64
	flagReportCSV      string
	flagReportJSON     string
	flagQuiet          bool

	flagAddr  string
	flagSpeed float64
	flagRuns  int
)

// stack bundles everything loaded from the embedded defaults.
type stack struct {
	disease   *infection.DiseaseConfig
	selectors infection.Selectors
	vaccines  *vaccine.Vaccines
	setter    *infection.ImmunitySetter
	log       *zap.Logger
}

func loadStack() (*stack, error) {
	log := sim.InitLogger()
	disease, err := infection.LoadDiseaseConfigFromReader(data.Covid19Config())
	if err != nil {
		return nil, err
	}
	table, err := infection.LoadRateTableFromReader(data.OutcomeRates())
	if err != nil {
		return nil, err
	}
	selectors, err := infection.NewSelectors(disease, table, log)
	if err != nil {
		return nil, err
	}
	vaccines, err := vaccine.LoadVaccinesFromReader(data.VaccinesConfig(), disease.Variants)
	if err != nil {
		return nil, err
	}
	setterCfg, err := infection.LoadImmunitySetterConfigFromReader(data.ImmunityConfig())
	if err != nil {
		return nil, err
	}
	setter, err := infection.NewImmunitySetter(setterCfg, disease.Variants, log)
	if err != nil {
		return nil, err
	}
	return &stack{disease: disease, selectors: selectors, vaccines: vaccines, setter: setter, log: log}, nil
}

func simConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Seed = flagSeed
	cfg.Days = flagDays
	cfg.Workers = flagWorkers
	cfg.ContactsPerDay = flagContacts
	cfg.InitialInfections = map[string]int{flagVariant: flagInitial}
	cfg.VaccinationDay = flagVaccinationDay
	cfg.VaccineName = flagVaccine
	cfg.VaccineCoverage = flagCoverage
	if flagVaccinationDay < 0 {
		cfg.VaccineName = ""
	}
	return cfg
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "episim",
		Short: "Epidemic simulation over a synthetic population",
	}
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&flagDays, "days", 120, "number of days to simulate")
	pf.IntVar(&flagPeople, "people", 10000, "population size")
	pf.Uint64Var(&flagSeed, "seed", 42, "random seed")
	pf.IntVar(&flagWorkers, "workers", 4, "parallel update workers")
	pf.Float64Var(&flagContacts, "contacts", 1.6, "mean daily contacts per infectious person")
	pf.IntVar(&flagInitial, "initial", 20, "initial infections")
	pf.StringVar(&flagVariant, "variant", "wild_type", "variant seeded on day zero")
	pf.IntVar(&flagVaccinationDay, "vaccination-day", 30, "campaign day (negative disables)")
	pf.StringVar(&flagVaccine, "vaccine", "pfizer", "vaccine brand for the campaign")
	pf.Float64Var(&flagCoverage, "coverage", 0.6, "campaign coverage fraction")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single simulation and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce()
		},
	}
	runCmd.Flags().StringVar(&flagReportCSV, "report", "", "CSV report path or directory")
	runCmd.Flags().StringVar(&flagReportJSON, "report-json", "", "JSON report path or directory")
	runCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "suppress the daily progress lines")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream live runs over HTTP server-sent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&flagSpeed, "stream-speed", 10, "days emitted per second")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Average several seeded runs headlessly",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch()
		},
	}
	batchCmd.Flags().IntVar(&flagRuns, "runs", 10, "number of runs to average")

	rootCmd.AddCommand(runCmd, serveCmd, batchCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runOnce() error {
	st, err := loadStack()
	if err != nil {
		return err
	}
	defer st.log.Sync()

	rng := infection.NewRNG(flagSeed)
	popCfg := sim.DefaultPopulationConfig()
	popCfg.Size = flagPeople
	people, err := sim.GeneratePopulation(popCfg, rng)
	if err != nil {
		return err
	}
	st.setter.SetImmunity(people, rng)

	simulator := sim.NewSimulator(simConfig(), st.disease, st.selectors, st.vaccines, people, st.log)
	events, _, wait := sim.StartRunner(simulator, st.log)

	var history []sim.DayStats
	for ev := range events {
		switch e := ev.(type) {
		case sim.DayEvent:
			if !flagQuiet {
				fmt.Printf("day %3d  infected=%-6d new=%-5d hospitalised=%-4d dead=%d\n",
					e.Stats.Day, e.Stats.Infected, e.Stats.NewInfections, e.Stats.Hospitalised, e.Stats.Dead)
			}
		case sim.DoneEvent:
			history = e.Days
			if !e.Completed {
				st.log.Warn("simulation did not complete")
			}
		}
	}
	wait()

	sim.PrintConsoleReport(history)
	if flagReportCSV != "" {
		path, err := sim.WriteCSVReport(flagReportCSV, history)
		if err != nil {
			return err
		}
		st.log.Info("CSV report written", zap.String("path", path))
	}
	if flagReportJSON != "" {
		path, err := sim.WriteJSONReport(flagReportJSON, history)
		if err != nil {
			return err
		}
		st.log.Info("JSON report written", zap.String("path", path))
	}
	return nil
}

func runServe() error {
	st, err := loadStack()
	if err != nil {
		return err
	}
	defer st.log.Sync()

	srv := server.New(st.disease, st.selectors, st.vaccines, st.setter, server.Options{
		Days:            flagDays,
		People:          flagPeople,
		Workers:         flagWorkers,
		ContactsPerDay:  flagContacts,
		Seed:            flagSeed,
		Variant:         flagVariant,
		Initial:         flagInitial,
		VaccinationDay:  flagVaccinationDay,
		VaccineName:     flagVaccine,
		VaccineCoverage: flagCoverage,
		DefaultSpeed:    flagSpeed,
	}, st.log)
	srv.Serve()
	st.log.Info("listening", zap.String("addr", flagAddr))
	return http.ListenAndServe(flagAddr, nil)
}

func runBatch() error {
	st, err := loadStack()
	if err != nil {
		return err
	}
	defer st.log.Sync()

	popCfg := sim.DefaultPopulationConfig()
	popCfg.Size = flagPeople
	summary, err := driver.Run(st.disease, st.selectors, st.vaccines, st.setter, driver.Options{
		Runs:     flagRuns,
		BaseSeed: flagSeed,
		Cfg:      simConfig(),
		PopCfg:   popCfg,
	}, st.log)
	if err != nil {
		return err
	}
	summary.Print()
	return nil
}
