package simulation

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	MaxGridSize   = 1024
	MaxTotalSteps = 5000
)

// Type tags the request body sent to the backend.
type Type string

const (
	TypeGrainShrinkage Type = "grain_shrinkage"
	TypeDendriteGrowth Type = "dendrite_growth"
)

type SymmetryMode int

const (
	Symmetry4 SymmetryMode = 4
	Symmetry6 SymmetryMode = 6
)

type NucleationMode string

const (
	NucleationCenter   NucleationMode = "center"
	NucleationRandom   NucleationMode = "random"
	NucleationCircular NucleationMode = "circular"
	NucleationBottom   NucleationMode = "bottom"
)

// Request is one of GrainShrinkage or DendriteGrowth.
type Request interface {
	Type() Type
	Grid() int
	Steps() int
	Validate() error
	json.Marshaler

	sealed()
}

// GrainShrinkage parameterizes the phase-field grain shrinkage model.
type GrainShrinkage struct {
	GridSize        int
	TotalSteps      int
	OutputInterval  int
	DrivingForce    float64
	Mobility        float64
	InterfaceEnergy float64
	InitRadius      float64
	NoiseLevel      float64
	AnisoStrength   float64
	Symmetry        SymmetryMode
	NucleiCount     int
	Nucleation      NucleationMode
}

func DefaultGrainShrinkage() GrainShrinkage {
	return GrainShrinkage{
		GridSize:        100,
		TotalSteps:      2000,
		OutputInterval:  50,
		DrivingForce:    0.1,
		Mobility:        1.0,
		InterfaceEnergy: 1.0,
		InitRadius:      25.0,
		NoiseLevel:      0.0,
		AnisoStrength:   0.0,
		Symmetry:        Symmetry4,
		NucleiCount:     1,
		Nucleation:      NucleationCenter,
	}
}

func (GrainShrinkage) Type() Type   { return TypeGrainShrinkage }
func (r GrainShrinkage) Grid() int  { return r.GridSize }
func (r GrainShrinkage) Steps() int { return r.TotalSteps }
func (GrainShrinkage) sealed()      {}

func (r GrainShrinkage) Validate() error {
	if err := validateBounds(r.GridSize, r.TotalSteps); err != nil {
		return err
	}
	if r.OutputInterval <= 0 {
		return &ValidationError{Field: "Nout", Message: "output interval must be positive"}
	}
	if r.Symmetry != Symmetry4 && r.Symmetry != Symmetry6 {
		return &ValidationError{Field: "symmetry_mode", Message: fmt.Sprintf("symmetry mode must be 4 or 6, got %d", r.Symmetry)}
	}
	if r.NucleiCount < 1 {
		return &ValidationError{Field: "nuclei_count", Message: "nuclei count must be at least 1"}
	}
	switch r.Nucleation {
	case NucleationCenter, NucleationRandom, NucleationCircular, NucleationBottom:
	default:
		return &ValidationError{Field: "nucleation_mode", Message: fmt.Sprintf("unknown nucleation mode %q", r.Nucleation)}
	}
	return nil
}

type grainShrinkageBody struct {
	SimulationType Type           `json:"simulation_type"`
	IM             int            `json:"im"`
	JM             int            `json:"jm"`
	NnnEd          int            `json:"nnn_ed"`
	Nout           int            `json:"Nout"`
	Driv           float64        `json:"driv"`
	Mobility       float64        `json:"mobility"`
	GBEnergy       float64        `json:"gb_energy"`
	InitRadius     float64        `json:"init_radius"`
	NoiseLevel     float64        `json:"noise_level"`
	AnisoStrength  float64        `json:"aniso_strength"`
	SymmetryMode   SymmetryMode   `json:"symmetry_mode"`
	NucleiCount    int            `json:"nuclei_count"`
	NucleationMode NucleationMode `json:"nucleation_mode"`
}

// MarshalJSON writes the flat backend body. jm repeats im because the
// backend still reads both axes separately.
func (r GrainShrinkage) MarshalJSON() ([]byte, error) {
	return json.Marshal(grainShrinkageBody{
		SimulationType: TypeGrainShrinkage,
		IM:             r.GridSize,
		JM:             r.GridSize,
		NnnEd:          r.TotalSteps,
		Nout:           r.OutputInterval,
		Driv:           r.DrivingForce,
		Mobility:       r.Mobility,
		GBEnergy:       r.InterfaceEnergy,
		InitRadius:     r.InitRadius,
		NoiseLevel:     r.NoiseLevel,
		AnisoStrength:  r.AnisoStrength,
		SymmetryMode:   r.Symmetry,
		NucleiCount:    r.NucleiCount,
		NucleationMode: r.Nucleation,
	})
}

// DendriteGrowth parameterizes the anisotropic dendrite solidification model.
type DendriteGrowth struct {
	GridSize       int
	TotalSteps     int
	NFoldSymmetry  int
	AnisoMagnitude float64
	LatentHeatCoef float64
	NoiseLevel     float64
	NucleiCount    int
	Nucleation     NucleationMode
}

func DefaultDendriteGrowth() DendriteGrowth {
	return DendriteGrowth{
		GridSize:       300,
		TotalSteps:     2000,
		NFoldSymmetry:  4,
		AnisoMagnitude: 0.05,
		LatentHeatCoef: 1.8,
		NoiseLevel:     0.01,
		NucleiCount:    1,
		Nucleation:     NucleationCenter,
	}
}

func (DendriteGrowth) Type() Type   { return TypeDendriteGrowth }
func (r DendriteGrowth) Grid() int  { return r.GridSize }
func (r DendriteGrowth) Steps() int { return r.TotalSteps }
func (DendriteGrowth) sealed()      {}

func (r DendriteGrowth) Validate() error {
	if err := validateBounds(r.GridSize, r.TotalSteps); err != nil {
		return err
	}
	if r.NFoldSymmetry < 1 {
		return &ValidationError{Field: "n_fold_symmetry", Message: "n-fold symmetry must be at least 1"}
	}
	if r.NucleiCount < 1 {
		return &ValidationError{Field: "nuclei_count", Message: "nuclei count must be at least 1"}
	}
	switch r.Nucleation {
	case NucleationCenter, NucleationRandom, NucleationBottom:
	default:
		return &ValidationError{Field: "nucleation_mode", Message: fmt.Sprintf("unknown nucleation mode %q", r.Nucleation)}
	}
	return nil
}

type dendriteGrowthBody struct {
	SimulationType Type           `json:"simulation_type"`
	N              int            `json:"n"`
	Steps          int            `json:"steps"`
	NFoldSymmetry  int            `json:"n_fold_symmetry"`
	AnisoMagnitude float64        `json:"aniso_magnitude"`
	LatentHeatCoef float64        `json:"latent_heat_coef"`
	NoiseLevel     float64        `json:"noise_level"`
	NucleiCount    int            `json:"nuclei_count"`
	NucleationMode NucleationMode `json:"nucleation_mode"`
}

func (r DendriteGrowth) MarshalJSON() ([]byte, error) {
	return json.Marshal(dendriteGrowthBody{
		SimulationType: TypeDendriteGrowth,
		N:              r.GridSize,
		Steps:          r.TotalSteps,
		NFoldSymmetry:  r.NFoldSymmetry,
		AnisoMagnitude: r.AnisoMagnitude,
		LatentHeatCoef: r.LatentHeatCoef,
		NoiseLevel:     r.NoiseLevel,
		NucleiCount:    r.NucleiCount,
		NucleationMode: r.Nucleation,
	})
}

func validateBounds(grid, steps int) error {
	if grid > MaxGridSize {
		return &ValidationError{Field: "grid_size", Message: fmt.Sprintf("grid size must be at most %d, got %d", MaxGridSize, grid)}
	}
	if steps > MaxTotalSteps {
		return &ValidationError{Field: "total_steps", Message: fmt.Sprintf("total steps must be at most %d, got %d", MaxTotalSteps, steps)}
	}
	if grid <= 0 {
		return &ValidationError{Field: "grid_size", Message: "grid size must be positive"}
	}
	if steps <= 0 {
		return &ValidationError{Field: "total_steps", Message: "total steps must be positive"}
	}
	return nil
}

// DecodeRequest parses a backend-shaped body back into a Request. Missing
// fields keep the variant defaults.
func DecodeRequest(raw []byte) (Request, error) {
	var head struct {
		SimulationType string `json:"simulation_type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &ValidationError{Field: "body", Message: fmt.Sprintf("invalid json body: %v", err)}
	}
	switch Type(strings.TrimSpace(head.SimulationType)) {
	case TypeGrainShrinkage:
		def := DefaultGrainShrinkage()
		body := grainShrinkageBody{
			IM:             def.GridSize,
			NnnEd:          def.TotalSteps,
			Nout:           def.OutputInterval,
			Driv:           def.DrivingForce,
			Mobility:       def.Mobility,
			GBEnergy:       def.InterfaceEnergy,
			InitRadius:     def.InitRadius,
			NoiseLevel:     def.NoiseLevel,
			AnisoStrength:  def.AnisoStrength,
			SymmetryMode:   def.Symmetry,
			NucleiCount:    def.NucleiCount,
			NucleationMode: def.Nucleation,
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, &ValidationError{Field: "body", Message: fmt.Sprintf("invalid grain_shrinkage body: %v", err)}
		}
		return GrainShrinkage{
			GridSize:        body.IM,
			TotalSteps:      body.NnnEd,
			OutputInterval:  body.Nout,
			DrivingForce:    body.Driv,
			Mobility:        body.Mobility,
			InterfaceEnergy: body.GBEnergy,
			InitRadius:      body.InitRadius,
			NoiseLevel:      body.NoiseLevel,
			AnisoStrength:   body.AnisoStrength,
			Symmetry:        body.SymmetryMode,
			NucleiCount:     body.NucleiCount,
			Nucleation:      body.NucleationMode,
		}, nil
	case TypeDendriteGrowth:
		def := DefaultDendriteGrowth()
		body := dendriteGrowthBody{
			N:              def.GridSize,
			Steps:          def.TotalSteps,
			NFoldSymmetry:  def.NFoldSymmetry,
			AnisoMagnitude: def.AnisoMagnitude,
			LatentHeatCoef: def.LatentHeatCoef,
			NoiseLevel:     def.NoiseLevel,
			NucleiCount:    def.NucleiCount,
			NucleationMode: def.Nucleation,
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, &ValidationError{Field: "body", Message: fmt.Sprintf("invalid dendrite_growth body: %v", err)}
		}
		return DendriteGrowth{
			GridSize:       body.N,
			TotalSteps:     body.Steps,
			NFoldSymmetry:  body.NFoldSymmetry,
			AnisoMagnitude: body.AnisoMagnitude,
			LatentHeatCoef: body.LatentHeatCoef,
			NoiseLevel:     body.NoiseLevel,
			NucleiCount:    body.NucleiCount,
			Nucleation:     body.NucleationMode,
		}, nil
	default:
		return nil, &ValidationError{Field: "simulation_type", Message: fmt.Sprintf("unknown simulation type %q", head.SimulationType)}
	}
}
