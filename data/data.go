// Package data ships the default disease, vaccine and immunity configuration
// so a simulation can run without external files.
package data

import (
	"bytes"
	_ "embed"
	"io"
)

//go:embed defaults/covid19.yaml
var covid19YAML []byte

//go:embed defaults/infection_outcome_rates.csv
var outcomeRatesCSV []byte

//go:embed defaults/vaccines.yaml
var vaccinesYAML []byte

//go:embed defaults/immunity.yaml
var immunityYAML []byte

// Covid19Config returns the default covid19 disease description.
func Covid19Config() io.Reader { return bytes.NewReader(covid19YAML) }

// OutcomeRates returns the default infection outcome rates table.
func OutcomeRates() io.Reader { return bytes.NewReader(outcomeRatesCSV) }

// VaccinesConfig returns the default vaccine catalogue.
func VaccinesConfig() io.Reader { return bytes.NewReader(vaccinesYAML) }

// ImmunityConfig returns the default population immunity seeding parameters.
func ImmunityConfig() io.Reader { return bytes.NewReader(immunityYAML) }
