// Command genfixture writes synthetic timestep grids for local runs and
// tests. Each file is a half-float payload named <YYYYMMDD>_<HH>z.bin, and a
// manifest listing the timesteps in order can be written alongside.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -out data/pressure \
//	  -start 20251028 -count 8 -step-hours 6 \
//	  -manifest data/pressure/timesteps.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "directory to write timestep files into")
	start := flag.String("start", "20251028", "date of the first timestep (YYYYMMDD)")
	count := flag.Int("count", 8, "number of timesteps to write")
	stepHours := flag.Int("step-hours", 6, "hours between timesteps, a divisor of 24")
	phaseStep := flag.Float64("phase-step", 0.25, "system drift phase added per timestep")
	manifest := flag.String("manifest", "", "optional path for a JSON list of timestep descriptors")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *count < 1 {
		return fmt.Errorf("-count must be at least 1")
	}
	if *stepHours < 1 || 24%*stepHours != 0 {
		return fmt.Errorf("-step-hours must divide 24, got %d", *stepHours)
	}
	first, err := time.Parse("20060102", *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	descs := make([]domain.TimestepDescriptor, 0, *count)
	for i := 0; i < *count; i++ {
		at := first.Add(time.Duration(i**stepHours) * time.Hour)
		d := descriptorAt(at)

		payload, err := grid.Encode(grid.Synthetic(grid.DefaultSystems, float64(i)**phaseStep))
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.Resource, err)
		}
		if err := os.WriteFile(filepath.Join(*out, d.Resource), payload, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", d.Resource, err)
		}
		descs = append(descs, d)
		log.Printf("wrote %s (%d bytes)", d.Resource, len(payload))
	}

	if *manifest != "" {
		if err := writeJSON(*manifest, descs); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
		log.Printf("wrote manifest: %s", *manifest)
	}

	log.Printf("total: %d timesteps", len(descs))
	return nil
}

func descriptorAt(at time.Time) domain.TimestepDescriptor {
	d := domain.TimestepDescriptor{
		Date:  at.Format("20060102"),
		Cycle: fmt.Sprintf("%02dz", at.Hour()),
	}
	d.Resource = d.Date + "_" + d.Cycle + domain.TimestepFileExt
	return d
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
