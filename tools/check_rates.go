// Standalone checker for infection outcome rate tables. Verifies that every
// age band of a rates CSV satisfies the constraints the outcome generator
// assumes, and exits non-zero when a band violates them.
//
// Usage: go run tools/check_rates.go data/defaults/infection_outcome_rates.csv
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

var settings = []string{"gp", "ch"}
var sexes = []string{"male", "female"}

type row struct {
	band   string
	values map[string]float64
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: check_rates <rates-csv>")
		os.Exit(1)
	}
	f, err := os.Open(os.Args[1])
	if err != nil {
		panic(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		panic(err)
	}
	if len(records) < 2 {
		panic("rates file has no data rows")
	}
	header := records[0]
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	rows := make([]row, 0, len(records)-1)
	for _, rec := range records[1:] {
		values := make(map[string]float64, len(header)-1)
		for name, i := range col {
			if name == "age" {
				continue
			}
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				panic(fmt.Sprintf("band %s column %s: %v", rec[col["age"]], name, err))
			}
			values[name] = v
		}
		rows = append(rows, row{band: rec[col["age"]], values: values})
	}

	violations := 0
	complain := func(band, format string, args ...any) {
		violations++
		fmt.Printf("%s: %s\n", band, fmt.Sprintf(format, args...))
	}
	for _, rw := range rows {
		for name, v := range rw.values {
			if v < 0 || v > 1 {
				complain(rw.band, "%s=%.4f outside [0,1]", name, v)
			}
		}
		for _, setting := range settings {
			for _, sex := range sexes {
				get := func(param string) float64 {
					return rw.values[setting+"_"+param+"_"+sex]
				}
				if get("hospital") < get("hospital_ifr") {
					complain(rw.band, "%s/%s: hospital %.4f < hospital_ifr %.4f",
						setting, sex, get("hospital"), get("hospital_ifr"))
				}
				if get("hospital_ifr") < get("icu_ifr") {
					complain(rw.band, "%s/%s: hospital_ifr %.4f < icu_ifr %.4f",
						setting, sex, get("hospital_ifr"), get("icu_ifr"))
				}
				if get("icu") < get("icu_ifr") {
					complain(rw.band, "%s/%s: icu %.4f < icu_ifr %.4f",
						setting, sex, get("icu"), get("icu_ifr"))
				}
				mass := get("asymptomatic") + get("mild") + get("hospital") + get("home_ifr")
				if mass > 1 {
					complain(rw.band, "%s/%s: asymptomatic+mild+hospital+home_ifr=%.4f > 1",
						setting, sex, mass)
				}
			}
		}
	}

	if violations > 0 {
		fmt.Printf("%d violation(s) in %d band(s)\n", violations, len(rows))
		os.Exit(1)
	}
	fmt.Printf("ok: %d bands, %d columns\n", len(rows), len(header)-1)
}
