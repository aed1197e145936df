// Command isobar extracts the isobars of one blended moment without running
// the service. Timesteps come from a local directory of timestep files or
// from a manifest resolved against a data base URL.
//
// Usage:
//
//	go run ./cmd/isobar -dir data/pressure -lower 2 -blend 0.25 \
//	  -iso 960:1040:4 -format geojson -out isobars.geojson
//
//	go run ./cmd/isobar -base-url https://cdn.example.com/pressure/ \
//	  -manifest timesteps.json -lower 0 -blend 0.5 -iso 1000,1004 -out frame.bin
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/isobar-contour-service/internal/adapter/fetch"
	"github.com/couchcryptid/isobar-contour-service/internal/cache"
	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
	"github.com/couchcryptid/isobar-contour-service/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "", "directory of <YYYYMMDD>_<HH>z.bin timestep files")
	baseURL := flag.String("base-url", "", "data base URL that manifest resources resolve against")
	manifest := flag.String("manifest", "", "JSON list of timestep descriptors; defaults to scanning -dir")
	lower := flag.Int("lower", 0, "index of the earlier timestep")
	blend := flag.Float64("blend", 0, "blend factor toward the next timestep, 0..1")
	iso := flag.String("iso", "960:1040:4", "iso-values, as a list or lo:hi:step")
	format := flag.String("format", string(domain.FormatVertices), "output format: vertices or geojson")
	out := flag.String("out", "", "output file; standard output when empty")
	timeout := flag.Duration("timeout", 15*time.Second, "fetch timeout")
	flag.Parse()

	if (*dir == "") == (*baseURL == "") {
		flag.Usage()
		return fmt.Errorf("exactly one of -dir or -base-url is required")
	}
	if *baseURL != "" && *manifest == "" {
		return fmt.Errorf("-base-url needs -manifest")
	}

	isoValues, err := domain.ParseIsoValues(*iso)
	if err != nil {
		return err
	}

	timesteps, err := loadTimesteps(*dir, *manifest)
	if err != nil {
		return err
	}

	req := domain.Request{
		LowerIndex:  *lower,
		Blend:       *blend,
		IsoValues:   isoValues,
		Timesteps:   timesteps,
		DataBaseURL: *baseURL,
		Format:      domain.Format(*format),
		Token:       time.Now().UnixMilli(),
	}
	if err := req.Validate(); err != nil {
		return err
	}

	var fetcher domain.Fetcher
	if *dir != "" {
		fetcher = fetch.NewDir(*dir)
	} else {
		fetcher, err = fetch.NewClient(*baseURL, nil, *timeout, observability.NewMetrics(), sharedobs.NewLogger("warn", "text"))
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	g0, g1, err := cache.New(fetcher).GetOrLoadPair(ctx, req.LowerIndex, req.Timesteps, req.DataBaseURL)
	if err != nil {
		return err
	}
	resp, err := worker.Compute(g0, g1, req)
	if err != nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	payload := resp.GeoJSON
	if resp.Format != domain.FormatGeoJSON {
		payload = domain.EncodeFrame(resp.Token, resp.Vertices)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	log.Printf("%s..%s blend %.3f: %d segments across %d iso-values",
		timesteps[req.LowerIndex].Resource, timesteps[req.UpperIndex()].Resource,
		req.Blend, resp.Segments, len(isoValues))
	return nil
}

func loadTimesteps(dir, manifest string) ([]domain.TimestepDescriptor, error) {
	if manifest == "" {
		return domain.ScanTimesteps(dir)
	}
	data, err := os.ReadFile(manifest)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var descs []domain.TimestepDescriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return descs, nil
}
