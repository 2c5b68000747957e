package model

import "fmt"

// SymptomTag identifies one severity level of a disease course. Tags are
// totally ordered by their configured value: comparing two tags compares
// severity. Non-negative values double as indices into the health outcome
// vector; negative values (recovered, healthy, exposed) are bookkeeping
// stages that never appear as final outcomes.
type SymptomTag int

// TagDef is one symptom tag as declared in disease configuration.
type TagDef struct {
	Name  string
	Value int
}

// TagClassifications groups tag names by the role they play in the state
// machine. All names must refer to declared tags.
type TagClassifications struct {
	// Recovered and Fatality are the terminal categories.
	Recovered []string
	Fatality  []string
	// Exposed is the initial stage of every course. Empty defaults to the
	// tag named "exposed".
	Exposed string
	// Asymptomatic courses never show symptoms; LowestVisible is the first
	// stage at which symptoms become observable (symptom onset).
	Asymptomatic  string
	LowestVisible string
	// MaxMildTag marks the mild/severe boundary of the outcome vector:
	// outcomes with value below it count as mild.
	MaxMildTag string
}

// TagSet is the immutable, configuration-loaded set of symptom tags for one
// disease, with their severity ordering and role classifications.
type TagSet struct {
	byName map[string]SymptomTag
	names  map[SymptomTag]string

	recovered map[SymptomTag]bool
	fatality  map[SymptomTag]bool

	exposed       SymptomTag
	asymptomatic  SymptomTag
	lowestVisible SymptomTag
	maxMildIndex  int
	nOutcomes     int
}

// NewTagSet validates tag definitions and classifications. Every name in the
// classifications must exist; duplicated names or values are rejected.
func NewTagSet(defs []TagDef, cls TagClassifications) (*TagSet, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("symptom tags: empty tag list")
	}
	ts := &TagSet{
		byName:    make(map[string]SymptomTag, len(defs)),
		names:     make(map[SymptomTag]string, len(defs)),
		recovered: make(map[SymptomTag]bool),
		fatality:  make(map[SymptomTag]bool),
	}
	maxOutcome := -1
	for _, d := range defs {
		tag := SymptomTag(d.Value)
		if _, ok := ts.byName[d.Name]; ok {
			return nil, fmt.Errorf("symptom tags: duplicate name %q", d.Name)
		}
		if _, ok := ts.names[tag]; ok {
			return nil, fmt.Errorf("symptom tags: duplicate value %d", d.Value)
		}
		ts.byName[d.Name] = tag
		ts.names[tag] = d.Name
		if d.Value > maxOutcome {
			maxOutcome = d.Value
		}
	}
	ts.nOutcomes = maxOutcome + 1

	for _, name := range cls.Recovered {
		tag, err := ts.FromString(name)
		if err != nil {
			return nil, fmt.Errorf("recovered stages: %w", err)
		}
		ts.recovered[tag] = true
	}
	for _, name := range cls.Fatality {
		tag, err := ts.FromString(name)
		if err != nil {
			return nil, fmt.Errorf("fatality stages: %w", err)
		}
		ts.fatality[tag] = true
	}
	// The initial stage is resolved by name. Bookkeeping tags below it in
	// value (recovered, healthy) would otherwise shadow it.
	exposedName := cls.Exposed
	if exposedName == "" {
		exposedName = "exposed"
	}
	var err error
	if ts.exposed, err = ts.FromString(exposedName); err != nil {
		return nil, fmt.Errorf("exposed stage: %w", err)
	}
	if ts.asymptomatic, err = ts.FromString(cls.Asymptomatic); err != nil {
		return nil, fmt.Errorf("asymptomatic stage: %w", err)
	}
	if ts.lowestVisible, err = ts.FromString(cls.LowestVisible); err != nil {
		return nil, fmt.Errorf("lowest visible stage: %w", err)
	}
	maxMild, err := ts.FromString(cls.MaxMildTag)
	if err != nil {
		return nil, fmt.Errorf("mild/severe boundary: %w", err)
	}
	if maxMild < 0 || int(maxMild) > ts.nOutcomes {
		return nil, fmt.Errorf("mild/severe boundary %q is not an outcome tag", cls.MaxMildTag)
	}
	ts.maxMildIndex = int(maxMild)
	return ts, nil
}

// FromString resolves a tag name. An unknown name is a fatal configuration
// error for the caller; there is no soft fallback.
func (ts *TagSet) FromString(name string) (SymptomTag, error) {
	tag, ok := ts.byName[name]
	if !ok {
		return 0, fmt.Errorf("unknown symptom tag %q", name)
	}
	return tag, nil
}

// Name returns the configured name for tag, or a numeric placeholder.
func (ts *TagSet) Name(tag SymptomTag) string {
	if n, ok := ts.names[tag]; ok {
		return n
	}
	return fmt.Sprintf("tag(%d)", int(tag))
}

// Exposed is the initial stage of every infection.
func (ts *TagSet) Exposed() SymptomTag { return ts.exposed }

// Asymptomatic is the tag of courses that never show symptoms.
func (ts *TagSet) Asymptomatic() SymptomTag { return ts.asymptomatic }

// LowestVisible is the first symptomatic stage (symptom onset marker).
func (ts *TagSet) LowestVisible() SymptomTag { return ts.lowestVisible }

// IsRecovered reports whether tag is classified as a recovery terminal.
func (ts *TagSet) IsRecovered(tag SymptomTag) bool { return ts.recovered[tag] }

// IsFatal reports whether tag is classified as a fatality terminal.
func (ts *TagSet) IsFatal(tag SymptomTag) bool { return ts.fatality[tag] }

// NOutcomes is the length of the health outcome vector: one entry per
// non-negative tag value, indexed by the value itself.
func (ts *TagSet) NOutcomes() int { return ts.nOutcomes }

// MaxMildIndex is the split point k of the outcome vector: entries below k
// are mild outcomes, entries from k on are severe.
func (ts *TagSet) MaxMildIndex() int { return ts.maxMildIndex }

// OutcomeTag maps an outcome vector index back to its tag.
func (ts *TagSet) OutcomeTag(index int) SymptomTag { return SymptomTag(index) }
