package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"episim/infection"
	"episim/sim"
	"episim/vaccine"
)

// connControl holds per-stream tunables.
type connControl struct {
	speed atomic.Value // days emitted per second
}

func (c *connControl) daysPerSecond() float64 {
	if c == nil {
		return 10
	}
	v := c.speed.Load()
	if v == nil {
		return 10
	}
	f := v.(float64)
	if f < 0.1 {
		f = 0.1
	}
	if f > 100 {
		f = 100
	}
	return f
}

// Options configures the server instance. Per-connection query parameters
// override the run shape; these are the defaults.
type Options struct {
	Days            int
	People          int
	Workers         int
	ContactsPerDay  float64
	Seed            uint64
	Variant         string
	Initial         int
	VaccinationDay  int
	VaccineName     string
	VaccineCoverage float64
	DefaultSpeed    float64 // days per second
}

// Server streams live epidemic runs over SSE. Every /api/stream connection
// gets its own population and simulator, so concurrent clients never share
// mutable state.
type Server struct {
	Disease   *infection.DiseaseConfig
	Selectors infection.Selectors
	Vaccines  *vaccine.Vaccines
	Setter    *infection.ImmunitySetter
	Opt       Options
	Log       *zap.Logger

	streamControls sync.Map // map[connID]*connControl
}

func New(disease *infection.DiseaseConfig, selectors infection.Selectors, vaccines *vaccine.Vaccines, setter *infection.ImmunitySetter, opt Options, log *zap.Logger) *Server {
	return &Server{Disease: disease, Selectors: selectors, Vaccines: vaccines, Setter: setter, Opt: opt, Log: log}
}

// Serve registers HTTP handlers on the default mux.
func (s *Server) Serve() {
	http.HandleFunc("/api/disease", s.handleDisease)
	http.HandleFunc("/api/control", s.handleControl)
	http.HandleFunc("/api/stream", s.handleStream)
}

func (s *Server) handleDisease(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	variants := make([]string, 0, len(s.Disease.Variants.Variants()))
	for _, v := range s.Disease.Variants.Variants() {
		variants = append(variants, v.Name)
	}
	j, _ := json.Marshal(map[string]any{
		"disease":  s.Disease.Name,
		"variants": variants,
	})
	w.Write(j)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(204)
		return
	}
	var req struct {
		ConnID string  `json:"conn_id"`
		Speed  float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", 400)
		return
	}
	v, ok := s.streamControls.Load(req.ConnID)
	if !ok {
		http.Error(w, "connection not found", 404)
		return
	}
	c := v.(*connControl)
	if req.Speed != 0 {
		sp := req.Speed
		if sp <= 0 {
			sp = 10
		}
		if sp > 100 {
			sp = 100
		}
		c.speed.Store(sp)
		s.Log.Info("control", zap.String("conn", req.ConnID), zap.Float64("days_per_second", sp))
	}
	w.WriteHeader(204)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", 500)
		return
	}

	cfg, popCfg := s.connConfig(r)

	rng := infection.NewRNG(cfg.Seed)
	people, err := sim.GeneratePopulation(popCfg, rng)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.Setter.SetImmunity(people, rng)
	simulator := sim.NewSimulator(cfg, s.Disease, s.Selectors, s.Vaccines, people, s.Log)

	connID := fmt.Sprintf("%d", time.Now().UnixNano())
	ctrl := &connControl{}
	initSpeed := s.Opt.DefaultSpeed
	if qs := r.URL.Query().Get("speed"); qs != "" {
		if v, err := strconv.ParseFloat(qs, 64); err == nil && v > 0 {
			initSpeed = v
		}
	}
	if initSpeed <= 0 {
		initSpeed = 10
	}
	ctrl.speed.Store(initSpeed)
	s.streamControls.Store(connID, ctrl)
	defer s.streamControls.Delete(connID)

	var writeMu sync.Mutex
	flush := func(event string, payload any) {
		writeMu.Lock()
		b, _ := json.Marshal(payload)
		fmt.Fprintf(w, "event: %s\n", event)
		fmt.Fprintf(w, "data: %s\n\n", string(b))
		flusher.Flush()
		writeMu.Unlock()
	}

	evCh, stopFn, waitFn := sim.StartRunner(simulator, s.Log)
	defer stopFn()
	defer waitFn()

	done := r.Context().Done()
	for e := range evCh {
		select {
		case <-done:
			stopFn()
		default:
		}
		switch ev := e.(type) {
		case sim.InitEvent:
			flush("init", map[string]any{
				"conn_id":  connID,
				"time":     ev.Time,
				"people":   ev.People,
				"variants": ev.Variants,
				"days":     ev.Days,
			})
		case sim.DayEvent:
			flush("day", ev.Stats)
			time.Sleep(time.Duration(float64(time.Second) / ctrl.daysPerSecond()))
		case sim.VaccinationEvent:
			flush("vaccination", map[string]any{
				"day": ev.Day, "vaccine": ev.Vaccine, "people": ev.People,
			})
		case sim.DoneEvent:
			flush("done", map[string]any{"completed": ev.Completed, "days": len(ev.Days)})
		}
	}
}

// connConfig merges query parameters over the server defaults.
func (s *Server) connConfig(r *http.Request) (sim.Config, sim.PopulationConfig) {
	cfg := sim.DefaultConfig()
	cfg.Seed = s.Opt.Seed
	cfg.Days = s.Opt.Days
	cfg.Workers = s.Opt.Workers
	cfg.ContactsPerDay = s.Opt.ContactsPerDay
	cfg.InitialInfections = map[string]int{s.Opt.Variant: s.Opt.Initial}
	cfg.VaccinationDay = s.Opt.VaccinationDay
	cfg.VaccineName = s.Opt.VaccineName
	cfg.VaccineCoverage = s.Opt.VaccineCoverage

	q := r.URL.Query()
	if v, err := strconv.ParseUint(q.Get("seed"), 10, 64); err == nil {
		cfg.Seed = v
	}
	if v, err := strconv.Atoi(q.Get("days")); err == nil && v > 0 {
		cfg.Days = v
	}
	if v, err := strconv.ParseFloat(q.Get("contacts"), 64); err == nil && v > 0 {
		cfg.ContactsPerDay = v
	}
	if name := q.Get("variant"); name != "" {
		if _, err := s.Disease.Variants.ByName(name); err == nil {
			cfg.InitialInfections = map[string]int{name: s.Opt.Initial}
		}
	}

	popCfg := sim.DefaultPopulationConfig()
	popCfg.Size = s.Opt.People
	if v, err := strconv.Atoi(q.Get("people")); err == nil && v > 0 {
		popCfg.Size = v
	}
	return cfg, popCfg
}
