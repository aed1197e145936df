// Command validate checks a directory of timestep grids before it is served:
// file naming and ordering, payload size and decodability, the wrap column and
// pole rows, plausible pressure ranges, and that every adjacent pair yields
// isobars when blended.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dir data/pressure \
//	  -manifest data/pressure/timesteps.json \
//	  -iso 960:1040:4
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/isobar-contour-service/internal/contour"
	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// Plausible mean-sea-level pressure bounds in hPa.
const (
	minPressure = 850
	maxPressure = 1100
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// timestep is one scanned file and its decoded grid, nil when undecodable.
type timestep struct {
	desc domain.TimestepDescriptor
	size int
	grid grid.Grid
	err  error
}

func main() {
	dir := flag.String("dir", "", "directory containing <YYYYMMDD>_<HH>z.bin timestep files")
	manifest := flag.String("manifest", "", "optional JSON list of timestep descriptors to check against the directory")
	iso := flag.String("iso", "960:1040:4", "iso-values to extract, as a list or lo:hi:step")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir, *manifest, *iso); code != 0 {
		os.Exit(code)
	}
}

func run(dir, manifestPath, isoSpec string) int {
	fmt.Println("=== Timestep Data Validation ===")
	fmt.Println()

	isoValues, err := domain.ParseIsoValues(isoSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	descs, err := domain.ScanTimesteps(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	var listed []domain.TimestepDescriptor
	if manifestPath != "" {
		listed, err = loadManifest(manifestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load manifest: %v\n", err)
			return 1
		}
	}

	steps := loadTimesteps(dir, descs)

	phases := []*phase{
		validateLayout(descs, listed),
		validatePayloads(steps),
		validatePressure(steps),
		validateContours(steps, isoValues),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Timesteps: %d files, %d listed in manifest, %d iso-values\n",
		len(descs), len(listed), len(isoValues))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadManifest(path string) ([]domain.TimestepDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var descs []domain.TimestepDescriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, err
	}
	return descs, nil
}

func loadTimesteps(dir string, descs []domain.TimestepDescriptor) []timestep {
	steps := make([]timestep, len(descs))
	for i, d := range descs {
		steps[i].desc = d
		data, err := os.ReadFile(filepath.Join(dir, d.Resource))
		if err != nil {
			steps[i].err = err
			continue
		}
		steps[i].size = len(data)
		steps[i].grid, steps[i].err = grid.Decode(data)
	}
	return steps
}

// ── Phase 1: Layout ──
// Validates that timesteps exist, are evenly spaced, and match the manifest.

func validateLayout(descs, listed []domain.TimestepDescriptor) *phase {
	p := &phase{name: "Phase 1: Layout (names and ordering)"}

	if len(descs) < 2 {
		p.errorf("found %d timestep files, need at least 2 to blend", len(descs))
	}

	for i := 2; i < len(descs); i++ {
		t0, _ := descs[i-2].ValidTime()
		t1, _ := descs[i-1].ValidTime()
		t2, _ := descs[i].ValidTime()
		if t2.Sub(t1) != t1.Sub(t0) {
			p.errorf("%s: spacing %s differs from previous %s", descs[i].Resource, t2.Sub(t1), t1.Sub(t0))
		}
	}

	if listed == nil {
		return p
	}
	if len(listed) != len(descs) {
		p.errorf("manifest lists %d timesteps, directory has %d", len(listed), len(descs))
	}
	for i := 0; i < min(len(listed), len(descs)); i++ {
		if filepath.Base(listed[i].Resource) != descs[i].Resource {
			p.errorf("manifest[%d]: resource %q, directory order has %q", i, listed[i].Resource, descs[i].Resource)
		}
		if listed[i].Date != descs[i].Date || listed[i].Cycle != descs[i].Cycle {
			p.errorf("manifest[%d]: %s %s does not match file name %s", i, listed[i].Date, listed[i].Cycle, descs[i].Resource)
		}
	}
	return p
}

// ── Phase 2: Payload Integrity ──
// Validates size, decodability, the wrap column, and uniform pole rows.

func validatePayloads(steps []timestep) *phase {
	p := &phase{name: "Phase 2: Payload Integrity (size and shape)"}

	for _, s := range steps {
		if s.err != nil {
			p.errorf("%s: %v", s.desc.Resource, s.err)
			continue
		}
		if s.size != grid.PayloadBytes {
			p.errorf("%s: %d bytes, expected %d", s.desc.Resource, s.size, grid.PayloadBytes)
		}

		var missing int
		for _, v := range s.grid {
			if math.IsNaN(v) {
				missing++
			}
		}
		if missing > 0 {
			p.errorf("%s: %d missing samples", s.desc.Resource, missing)
		}

		for row := 0; row < grid.Height; row++ {
			first := grid.Sample(s.grid, 0, row)
			wrap := grid.Sample(s.grid, grid.Width-1, row)
			if !sameSample(first, wrap) {
				p.errorf("%s row %d: wrap column %.2f != column 0 %.2f", s.desc.Resource, row, wrap, first)
				break
			}
		}

		for _, row := range []int{0, grid.Height - 1} {
			ref := grid.Sample(s.grid, 0, row)
			for col := 1; col < grid.Width; col++ {
				if !sameSample(ref, grid.Sample(s.grid, col, row)) {
					p.errorf("%s: pole row %d is not uniform at column %d", s.desc.Resource, row, col)
					break
				}
			}
		}
	}
	return p
}

func sameSample(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// ── Phase 3: Pressure Range ──

func validatePressure(steps []timestep) *phase {
	p := &phase{name: "Phase 3: Pressure Range (hPa)"}

	for _, s := range steps {
		if s.grid == nil {
			continue
		}
		lo, hi, ok := grid.Range(s.grid)
		if !ok {
			p.errorf("%s: no samples present", s.desc.Resource)
			continue
		}
		if lo < minPressure || hi > maxPressure {
			p.errorf("%s: range %.1f..%.1f outside %d..%d", s.desc.Resource, lo, hi, minPressure, maxPressure)
		}
	}
	return p
}

// ── Phase 4: Contour Extraction ──
// Validates that every adjacent pair blends and produces isobars.

func validateContours(steps []timestep, isoValues []float64) *phase {
	p := &phase{name: "Phase 4: Contour Extraction (blended pairs)"}

	for i := 0; i+1 < len(steps); i++ {
		a, b := steps[i], steps[i+1]
		if a.grid == nil || b.grid == nil {
			continue
		}
		mid, err := grid.Interpolate(a.grid, b.grid, 0.5)
		if err != nil {
			p.errorf("%s..%s: %v", a.desc.Resource, b.desc.Resource, err)
			continue
		}
		verts := contour.Extract(mid, isoValues)
		if len(verts)%contour.FloatsPerSegment != 0 {
			p.errorf("%s..%s: vertex buffer length %d not a multiple of %d",
				a.desc.Resource, b.desc.Resource, len(verts), contour.FloatsPerSegment)
		}
		if len(verts) == 0 {
			p.errorf("%s..%s: no isobars for %d iso-values", a.desc.Resource, b.desc.Resource, len(isoValues))
		}
		for j := 0; j+2 < len(verts); j += 3 {
			r := math.Sqrt(float64(verts[j]*verts[j] + verts[j+1]*verts[j+1] + verts[j+2]*verts[j+2]))
			if math.Abs(r-1) > 1e-3 {
				p.errorf("%s..%s: vertex %d off the unit sphere (|v|=%.4f)", a.desc.Resource, b.desc.Resource, j/3, r)
				break
			}
		}
	}
	return p
}
