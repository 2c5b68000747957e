package sim

import (
	"sync"

	"go.uber.org/zap"
)

// StartRunner seeds the initial infections and runs the day loop in a
// goroutine, emitting events on the returned channel. It returns a stop
// function to cancel early and a wait that blocks for completion. The
// channel is closed after the DoneEvent.
func StartRunner(s *Simulator, log *zap.Logger) (events <-chan Event, stop func(), wait func()) {
	ch := make(chan Event, 64)
	stopCh := make(chan struct{})
	var stopOnce sync.Once
	stop = func() { stopOnce.Do(func() { close(stopCh) }) }
	var wg sync.WaitGroup
	wait = func() { wg.Wait() }

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(ch)

		ch <- InitEvent{
			Time:     s.cfg.StartDate,
			People:   len(s.people),
			Variants: len(s.selectors),
			Days:     s.cfg.Days,
		}
		for name, count := range s.cfg.InitialInfections {
			if err := s.SeedInfections(name, count); err != nil {
				log.Error("seeding failed", zap.String("variant", name), zap.Error(err))
				ch <- DoneEvent{Completed: false}
				return
			}
		}

		history := make([]DayStats, 0, s.cfg.Days)
		for day := 1; day <= s.cfg.Days; day++ {
			select {
			case <-stopCh:
				ch <- DoneEvent{Completed: false, Days: history}
				return
			default:
			}
			before := s.vaccinated
			stats, err := s.Step()
			if err != nil {
				log.Error("simulation step failed", zap.Int("day", day), zap.Error(err))
				ch <- DoneEvent{Completed: false, Days: history}
				return
			}
			history = append(history, stats)
			ch <- DayEvent{Stats: stats}
			if s.vaccinated > before {
				ch <- VaccinationEvent{Day: day, Vaccine: s.cfg.VaccineName, People: s.vaccinated - before}
			}
			log.Debug("day complete",
				zap.Int("day", day),
				zap.Int("infected", stats.Infected),
				zap.Int("new_infections", stats.NewInfections),
				zap.Int("dead", stats.Dead))
		}
		ch <- DoneEvent{Completed: true, Days: history}
	}()
	return ch, stop, wait
}
