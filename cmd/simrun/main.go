package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"labsite/internal/simulation"
)

// fieldFlags are passed to simulation.FromForm under their form names.
var fieldFlags = []struct{ name, usage string }{
	{"gridSize", "grid size (both variants)"},
	{"totalSteps", "total simulation steps (both variants)"},
	{"outputInterval", "frame output interval (grain_shrinkage)"},
	{"drivingForce", "driving force (grain_shrinkage)"},
	{"mobility", "boundary mobility (grain_shrinkage)"},
	{"interfaceEnergy", "grain boundary energy (grain_shrinkage)"},
	{"initRadius", "initial grain radius (grain_shrinkage)"},
	{"anisoStrength", "anisotropy strength (grain_shrinkage)"},
	{"symmetryMode", "4 or 6 (grain_shrinkage)"},
	{"nFoldSymmetry", "n-fold symmetry (dendrite_growth)"},
	{"anisoMagnitude", "anisotropy magnitude (dendrite_growth)"},
	{"latentHeatCoef", "latent heat coefficient (dendrite_growth)"},
	{"noiseLevel", "noise level (both variants)"},
	{"nucleiCount", "number of nuclei (both variants)"},
	{"nucleationMode", "center, random, circular or bottom (both variants)"},
}

func main() {
	_ = godotenv.Load()

	simType := flag.String("type", string(simulation.TypeGrainShrinkage), "grain_shrinkage or dendrite_growth")
	backend := flag.String("backend", "", "simulation backend base url (default $SIM_BACKEND_URL)")
	requestFile := flag.String("request", "", "JSON job description; overrides -type and field flags")
	outDir := flag.String("out", "out", "output directory for frames and final state")
	timeout := flag.Duration("timeout", 30*time.Minute, "give up after this long")
	fields := make(map[string]*string, len(fieldFlags))
	for _, f := range fieldFlags {
		fields[f.name] = flag.String(f.name, "", f.usage)
	}
	flag.Parse()

	backendURL := strings.TrimSpace(*backend)
	if backendURL == "" {
		backendURL = strings.TrimSpace(os.Getenv("SIM_BACKEND_URL"))
	}
	if backendURL == "" {
		log.Fatal("simrun: -backend or SIM_BACKEND_URL is required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	req, err := buildRequest(*simType, *requestFile, fields)
	if err != nil {
		log.Fatalf("simrun: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	final, err := run(ctx, backendURL, req, *outDir)
	if werr := writeJSON(*outDir, "state.json", final); werr != nil {
		log.Printf("simrun: write state: %v", werr)
	}
	if err != nil {
		log.Fatalf("simrun: %v", err)
	}
	if final.Status != simulation.StatusCompleted {
		log.Fatalf("simrun: task %s %s: %s", final.TaskID, final.Status, final.ErrorMessage)
	}
	log.Printf("simrun: task %s completed frames=%d out=%s", final.TaskID, final.Frames, *outDir)
}

func buildRequest(simType, requestFile string, fields map[string]*string) (simulation.Request, error) {
	if requestFile != "" {
		raw, err := os.ReadFile(requestFile)
		if err != nil {
			return nil, err
		}
		return simulation.DecodeRequest(raw)
	}
	values := url.Values{}
	for name, v := range fields {
		if s := strings.TrimSpace(*v); s != "" {
			values.Set(name, s)
		}
	}
	return simulation.FromForm(simType, values)
}

func run(ctx context.Context, backendURL string, req simulation.Request, outDir string) (simulation.Snapshot, error) {
	var frameErr error
	ctrl, err := simulation.NewController(backendURL,
		simulation.WithObserver(func(evt simulation.Event) {
			switch evt.Kind {
			case simulation.EventSubmitted:
				log.Printf("simrun: submitted task_id=%s", evt.Snapshot.TaskID)
			case simulation.EventStatus:
				log.Printf("simrun: status=%s", evt.Snapshot.Status)
			}
		}),
		simulation.WithFrameSink(func(_ string, seq int, frame string) {
			if err := writeFrame(outDir, seq, frame); err != nil && frameErr == nil {
				frameErr = err
			}
		}),
	)
	if err != nil {
		return simulation.Snapshot{}, err
	}
	defer ctrl.Close()

	snap, err := ctrl.Submit(ctx, req)
	if err != nil {
		return snap, err
	}
	snap, err = ctrl.Wait(ctx)
	if err != nil {
		return snap, fmt.Errorf("waiting for task %s: %w", snap.TaskID, err)
	}
	if frameErr != nil {
		return snap, errors.Join(errors.New("some frames were not written"), frameErr)
	}
	return snap, nil
}

func writeFrame(outDir string, seq int, frame string) error {
	png, err := simulation.DecodeFrame(frame)
	if err != nil {
		return fmt.Errorf("frame %d: %w", seq, err)
	}
	name := filepath.Join(outDir, fmt.Sprintf("frame_%04d.png", seq))
	return os.WriteFile(name, png, 0o644)
}

func writeJSON(outDir, name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, name), b, 0o644)
}
