package sim

import "time"

// Event is a marker for all simulation events emitted by Runner.
type Event interface{ isEvent() }

// InitEvent signals the start of a simulation stream.
type InitEvent struct {
	Time     time.Time
	People   int
	Variants int
	Days     int
}

func (InitEvent) isEvent() {}

// DayEvent carries one day's census.
type DayEvent struct {
	Stats DayStats
}

func (DayEvent) isEvent() {}

// VaccinationEvent marks the campaign day.
type VaccinationEvent struct {
	Day     int
	Vaccine string
	People  int
}

func (VaccinationEvent) isEvent() {}

// DoneEvent signals completion and carries the full daily history.
type DoneEvent struct {
	Completed bool
	Days      []DayStats
}

func (DoneEvent) isEvent() {}
