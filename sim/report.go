package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteCSVReport writes the daily census to the given path or directory.
// If reportPath is a directory, it creates a timestamped file inside.
// If reportPath is a file, a timestamp is suffixed before the extension.
func WriteCSVReport(reportPath string, days []DayStats) (string, error) {
	if reportPath == "" {
		return "", nil
	}
	outPath := timestampedPath(reportPath, "csv")
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	fmt.Fprintln(f, "day,date,susceptible,infected,hospitalised,intensive_care,recovered,dead,vaccinated,new_infections")
	for _, d := range days {
		fmt.Fprintf(f, "%d,%s,%d,%d,%d,%d,%d,%d,%d,%d\n",
			d.Day, d.Date.Format("2006-01-02"),
			d.Susceptible, d.Infected, d.Hospitalised, d.IntensiveCare,
			d.Recovered, d.Dead, d.Vaccinated, d.NewInfections)
	}
	return outPath, nil
}

// WriteJSONReport dumps the daily census as a JSON array.
func WriteJSONReport(reportPath string, days []DayStats) (string, error) {
	if reportPath == "" {
		return "", nil
	}
	outPath := timestampedPath(reportPath, "json")
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(days); err != nil {
		return "", err
	}
	return outPath, nil
}

func timestampedPath(reportPath, ext string) string {
	ts := time.Now().Format("20060102-150405")
	if fi, err := os.Stat(reportPath); err == nil && fi.IsDir() {
		return filepath.Join(reportPath, fmt.Sprintf("report-%s.%s", ts, ext))
	}
	fileExt := filepath.Ext(reportPath)
	base := reportPath[:len(reportPath)-len(fileExt)]
	return fmt.Sprintf("%s-%s%s", base, ts, fileExt)
}

// PrintConsoleReport prints a human-readable report to stdout.
func PrintConsoleReport(days []DayStats) {
	fmt.Println("=== Epidemic Report ===")
	if len(days) == 0 {
		fmt.Println("no days simulated")
		return
	}
	last := days[len(days)-1]
	peak := days[0]
	totalNew := 0
	for _, d := range days {
		if d.Infected > peak.Infected {
			peak = d
		}
		totalNew += d.NewInfections
	}
	fmt.Printf("Days simulated: %d\n", len(days))
	fmt.Printf("Total infections: %d\n", totalNew)
	fmt.Printf("Peak: %d infected on day %d\n", peak.Infected, peak.Day)
	fmt.Printf("Final state: %d susceptible, %d infected, %d recovered, %d dead\n",
		last.Susceptible, last.Infected, last.Recovered, last.Dead)
	fmt.Printf("Vaccinated: %d\n", last.Vaccinated)
}
