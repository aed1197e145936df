package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimestepFileExt is the extension of pressure grid files.
const TimestepFileExt = ".bin"

// ParseTimestepFilename parses "<YYYYMMDD>_<HH>z.bin" into a descriptor whose
// resource is the file name itself.
func ParseTimestepFilename(name string) (TimestepDescriptor, error) {
	base := filepath.Base(name)
	stem, ok := strings.CutSuffix(base, TimestepFileExt)
	if !ok {
		return TimestepDescriptor{}, fmt.Errorf("timestep file %q: missing %s extension", base, TimestepFileExt)
	}
	date, cycle, ok := strings.Cut(stem, "_")
	if !ok {
		return TimestepDescriptor{}, fmt.Errorf("timestep file %q: want <date>_<cycle>%s", base, TimestepFileExt)
	}
	d := TimestepDescriptor{Date: date, Cycle: cycle, Resource: base}
	if _, err := d.ValidTime(); err != nil {
		return TimestepDescriptor{}, fmt.Errorf("timestep file %q: %w", base, err)
	}
	return d, nil
}

// ScanTimesteps lists the timestep files in dir ordered by run time.
// Files that do not follow the naming convention are ignored.
func ScanTimesteps(dir string) ([]TimestepDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan timesteps: %w", err)
	}

	type dated struct {
		desc TimestepDescriptor
		at   time.Time
	}
	var found []dated
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		d, err := ParseTimestepFilename(e.Name())
		if err != nil {
			continue
		}
		at, _ := d.ValidTime()
		found = append(found, dated{desc: d, at: at})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })

	out := make([]TimestepDescriptor, len(found))
	for i, f := range found {
		out[i] = f.desc
	}
	return out, nil
}

// parseCycle turns "06z" into 6.
func parseCycle(cycle string) (int, error) {
	digits, ok := strings.CutSuffix(strings.ToLower(cycle), "z")
	if !ok || len(digits) != 2 {
		return 0, fmt.Errorf("timestep cycle %q: want HHz", cycle)
	}
	hour, err := strconv.Atoi(digits)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("timestep cycle %q: hour out of range", cycle)
	}
	return hour, nil
}
