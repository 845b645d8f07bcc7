package simulation

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrainShrinkageBodyMatchesBackendContract(t *testing.T) {
	values := url.Values{}
	values.Set("gridSize", "100")
	values.Set("totalSteps", "2000")
	values.Set("outputInterval", "50")
	values.Set("drivingForce", "0.1")
	values.Set("mobility", "1.0")
	values.Set("interfaceEnergy", "1.0")
	values.Set("initRadius", "25.0")
	values.Set("noiseLevel", "0.0")
	values.Set("anisoStrength", "0.0")
	values.Set("symmetryMode", "4")
	values.Set("nucleiCount", "1")
	values.Set("nucleationMode", "center")

	req, err := FromForm("grain_shrinkage", values)
	require.NoError(t, err)
	require.NoError(t, req.Validate())

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	want := `{ "simulation_type": "grain_shrinkage", "im": 100, "jm": 100, "nnn_ed": 2000,
  "Nout": 50, "driv": 0.1, "mobility": 1.0, "gb_energy": 1.0, "init_radius": 25.0,
  "noise_level": 0.0, "aniso_strength": 0.0, "symmetry_mode": 4,
  "nuclei_count": 1, "nucleation_mode": "center" }`
	assert.JSONEq(t, want, string(raw))
}

func TestDendriteGrowthBodyMatchesBackendContract(t *testing.T) {
	values := url.Values{}
	values.Set("n", "256")
	values.Set("steps", "3000")
	values.Set("n_fold_symmetry", "6")
	values.Set("aniso_magnitude", "0.04")
	values.Set("latent_heat_coef", "1.6")
	values.Set("noise_level", "0.02")
	values.Set("nuclei_count", "3")
	values.Set("nucleation_mode", "bottom")

	req, err := FromForm("dendrite_growth", values)
	require.NoError(t, err)
	require.NoError(t, req.Validate())
	assert.Equal(t, TypeDendriteGrowth, req.Type())
	assert.Equal(t, 256, req.Grid())
	assert.Equal(t, 3000, req.Steps())

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	want := `{"simulation_type":"dendrite_growth","n":256,"steps":3000,"n_fold_symmetry":6,
  "aniso_magnitude":0.04,"latent_heat_coef":1.6,"noise_level":0.02,"nuclei_count":3,
  "nucleation_mode":"bottom"}`
	assert.JSONEq(t, want, string(raw))
}

func TestDecodeRequestRestoresVariant(t *testing.T) {
	in := DefaultGrainShrinkage()
	in.GridSize = 512
	in.Symmetry = Symmetry6
	in.Nucleation = NucleationCircular
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := DecodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	dIn := DefaultDendriteGrowth()
	dIn.NucleiCount = 4
	raw, err = json.Marshal(dIn)
	require.NoError(t, err)
	dOut, err := DecodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, dIn, dOut)
}

func TestDecodeRequestDefaultsAndErrors(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"simulation_type":"dendrite_growth","n":64}`))
	require.NoError(t, err)
	want := DefaultDendriteGrowth()
	want.GridSize = 64
	assert.Equal(t, want, req)

	_, err = DecodeRequest([]byte(`{"simulation_type":"ising"}`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "simulation_type", vErr.Field)

	_, err = DecodeRequest([]byte(`not json`))
	require.ErrorAs(t, err, &vErr)
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"grain defaults", DefaultGrainShrinkage(), ""},
		{"dendrite defaults", DefaultDendriteGrowth(), ""},
		{"grid at limit", func() Request {
			r := DefaultGrainShrinkage()
			r.GridSize = MaxGridSize
			r.TotalSteps = MaxTotalSteps
			return r
		}(), ""},
		{"grid over limit", func() Request { r := DefaultGrainShrinkage(); r.GridSize = MaxGridSize + 1; return r }(), "grid_size"},
		{"steps over limit", func() Request { r := DefaultDendriteGrowth(); r.TotalSteps = MaxTotalSteps + 1; return r }(), "total_steps"},
		{"zero grid", func() Request { r := DefaultDendriteGrowth(); r.GridSize = 0; return r }(), "grid_size"},
		{"bad symmetry", func() Request { r := DefaultGrainShrinkage(); r.Symmetry = 5; return r }(), "symmetry_mode"},
		{"circular not allowed for dendrite", func() Request { r := DefaultDendriteGrowth(); r.Nucleation = NucleationCircular; return r }(), "nucleation_mode"},
		{"no nuclei", func() Request { r := DefaultGrainShrinkage(); r.NucleiCount = 0; return r }(), "nuclei_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestFromFormRejectsBadNumbers(t *testing.T) {
	values := url.Values{}
	values.Set("im", "lots")
	_, err := FromForm("grain_shrinkage", values)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "im", vErr.Field)

	_, err = FromForm("unknown", url.Values{})
	require.ErrorAs(t, err, &vErr)
}

func TestFromFormDefaultsToGrainShrinkage(t *testing.T) {
	req, err := FromForm("", url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultGrainShrinkage(), req)
}
