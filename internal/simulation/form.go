package simulation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// FromForm builds a request from submitted form fields. Each field accepts
// either its wire key or its camelCase form name; absent fields keep the
// defaults of the selected variant.
func FromForm(simType string, values url.Values) (Request, error) {
	f := formReader{values: values}
	switch Type(strings.TrimSpace(simType)) {
	case TypeGrainShrinkage, "":
		r := DefaultGrainShrinkage()
		f.intField(&r.GridSize, "im", "gridSize")
		f.intField(&r.TotalSteps, "nnn_ed", "totalSteps")
		f.intField(&r.OutputInterval, "Nout", "outputInterval")
		f.floatField(&r.DrivingForce, "driv", "drivingForce")
		f.floatField(&r.Mobility, "mobility")
		f.floatField(&r.InterfaceEnergy, "gb_energy", "interfaceEnergy")
		f.floatField(&r.InitRadius, "init_radius", "initRadius")
		f.floatField(&r.NoiseLevel, "noise_level", "noiseLevel")
		f.floatField(&r.AnisoStrength, "aniso_strength", "anisoStrength")
		sym := int(r.Symmetry)
		f.intField(&sym, "symmetry_mode", "symmetryMode")
		r.Symmetry = SymmetryMode(sym)
		f.intField(&r.NucleiCount, "nuclei_count", "nucleiCount")
		f.stringField((*string)(&r.Nucleation), "nucleation_mode", "nucleationMode")
		if f.err != nil {
			return nil, f.err
		}
		return r, nil
	case TypeDendriteGrowth:
		r := DefaultDendriteGrowth()
		f.intField(&r.GridSize, "n", "gridSize")
		f.intField(&r.TotalSteps, "steps", "totalSteps")
		f.intField(&r.NFoldSymmetry, "n_fold_symmetry", "nFoldSymmetry")
		f.floatField(&r.AnisoMagnitude, "aniso_magnitude", "anisoMagnitude")
		f.floatField(&r.LatentHeatCoef, "latent_heat_coef", "latentHeatCoef")
		f.floatField(&r.NoiseLevel, "noise_level", "noiseLevel")
		f.intField(&r.NucleiCount, "nuclei_count", "nucleiCount")
		f.stringField((*string)(&r.Nucleation), "nucleation_mode", "nucleationMode")
		if f.err != nil {
			return nil, f.err
		}
		return r, nil
	default:
		return nil, &ValidationError{Field: "simulation_type", Message: fmt.Sprintf("unknown simulation type %q", simType)}
	}
}

type formReader struct {
	values url.Values
	err    error
}

func (f *formReader) lookup(keys ...string) (string, string, bool) {
	for _, k := range keys {
		if v := strings.TrimSpace(f.values.Get(k)); v != "" {
			return k, v, true
		}
	}
	return "", "", false
}

func (f *formReader) intField(dst *int, keys ...string) {
	if f.err != nil {
		return
	}
	key, raw, ok := f.lookup(keys...)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		f.err = &ValidationError{Field: key, Message: fmt.Sprintf("%s must be an integer, got %q", key, raw)}
		return
	}
	*dst = v
}

func (f *formReader) floatField(dst *float64, keys ...string) {
	if f.err != nil {
		return
	}
	key, raw, ok := f.lookup(keys...)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.err = &ValidationError{Field: key, Message: fmt.Sprintf("%s must be a number, got %q", key, raw)}
		return
	}
	*dst = v
}

func (f *formReader) stringField(dst *string, keys ...string) {
	if f.err != nil {
		return
	}
	if _, raw, ok := f.lookup(keys...); ok {
		*dst = raw
	}
}
