package spatialsim

import "github.com/pkg/errors"

// Config is the root TOML configuration for a run, decoded with
// github.com/BurntSushi/toml the way evoepi_config.go decodes its
// sectioned configuration, validated section by section before use.
type Config struct {
	Epidemiology  EpidemiologyConfig    `toml:"epidemiology"`
	Population    PopulationConfig      `toml:"population"`
	Kernel        KernelConfig          `toml:"kernel"`
	RateStructure RateStructureConfig   `toml:"rate_structure"`
	Interventions []InterventionConfig  `toml:"interventions"`
	Output        OutputConfig          `toml:"output"`
	Run           RunConfig             `toml:"run"`
}

// Validate runs every section's own Validate method, wrapping each
// failure with the section name so a misconfigured file points straight
// at the offending block.
func (c *Config) Validate() error {
	if err := c.Epidemiology.Validate(); err != nil {
		return errors.Wrap(err, "epidemiology")
	}
	if err := c.Population.Validate(); err != nil {
		return errors.Wrap(err, "population")
	}
	if err := c.Kernel.Validate(); err != nil {
		return errors.Wrap(err, "kernel")
	}
	if err := c.RateStructure.Validate(); err != nil {
		return errors.Wrap(err, "rate_structure")
	}
	for i, iv := range c.Interventions {
		if err := iv.Validate(); err != nil {
			return errors.Wrapf(err, "interventions[%d]", i)
		}
	}
	if err := c.Output.Validate(); err != nil {
		return errors.Wrap(err, "output")
	}
	if err := c.Run.Validate(); err != nil {
		return errors.Wrap(err, "run")
	}
	return nil
}

// EpidemiologyConfig describes the compartmental model chain and the
// advance rate out of each non-terminal compartment. InfRate is the
// outer multiplier spec.md §4.2 calls the Infection channel's
// rate_factor, applied on top of whatever the RateStructure sums.
type EpidemiologyConfig struct {
	Model        string             `toml:"model"`
	InfRate      float64            `toml:"inf_rate"`
	AdvanceRates map[string]float64 `toml:"advance_rates"`
}

func (e *EpidemiologyConfig) Validate() error {
	if e.Model == "" {
		return errors.Errorf(MissingRequiredKeyError, "model", "epidemiology")
	}
	if e.InfRate == 0 {
		e.InfRate = 1.0
	} else if e.InfRate < 0 {
		return errors.Errorf(InvalidFloatParameterError, "inf_rate", e.InfRate, "must be non-negative")
	}
	if _, err := NewModel(e.Model); err != nil {
		return err
	}
	return nil
}

// PopulationConfig points at the input files that build the HostStore and
// sets the per-cell host capacity used by cell-mode and raster-mode
// pressure scaling.
//
// Mode "host" reads HostFile/InitCondFile/RegionFile (plain position-list
// text files, one row per individually-tracked host). Mode "cell" is the
// same host-level population with its infection pressure additionally
// scaled by the owning cell's susceptible fraction of MaxHosts. Mode
// "raster" instead reads an ESRI ASCII host-count raster plus one
// per-state initial-condition raster, aggregating hosts into grid cells
// addressed by (row, col) rather than a flat host list -- the full
// spec.md §6 raster input path, including the virtual-sporulation
// long-range jump the EventHandler wires up when the kernel is also
// raster-mode and Kernel.VirtualSporulationStart is set.
type PopulationConfig struct {
	HostFile     string `toml:"host_file"`
	InitCondFile string `toml:"init_cond_file"`
	RegionFile   string `toml:"region_file"`
	Mode         string `toml:"mode"` // "host", "cell", or "raster"
	MaxHosts     int    `toml:"max_hosts"`

	// Raster-mode inputs.
	HostRaster           string            `toml:"host_raster"`
	InitCondRasters      map[string]string `toml:"init_cond_rasters"` // state letter -> raster path
	RegionRaster         string            `toml:"region_raster"`
	SusceptibilityRaster string            `toml:"susceptibility_raster"`
	InfectiousnessRaster string            `toml:"infectiousness_raster"`
}

func (p *PopulationConfig) Validate() error {
	switch p.Mode {
	case "", "host":
		p.Mode = "host"
		if p.HostFile == "" {
			return errors.Errorf(MissingRequiredKeyError, "host_file", "population")
		}
	case "cell":
		if p.HostFile == "" {
			return errors.Errorf(MissingRequiredKeyError, "host_file", "population")
		}
		if p.MaxHosts <= 0 {
			return errors.Errorf(InvalidIntParameterError, "max_hosts", p.MaxHosts, "must be positive in cell mode")
		}
	case "raster":
		if p.HostRaster == "" {
			return errors.Errorf(MissingRequiredKeyError, "host_raster", "population")
		}
		if p.MaxHosts <= 0 {
			return errors.Errorf(InvalidIntParameterError, "max_hosts", p.MaxHosts, "must be positive in raster mode")
		}
	default:
		return errors.Errorf(UnrecognizedKeywordError, p.Mode, "population.mode")
	}
	return nil
}

// KernelConfig selects and parameterizes the spatial dispersal kernel.
type KernelConfig struct {
	Mode                    string  `toml:"mode"` // "exponential", "nonspatial", "raster"
	Scale                   float64 `toml:"scale"`
	NonspatialRate          float64 `toml:"nonspatial_rate"`
	RasterFile              string  `toml:"raster_file"`
	Cache                   bool    `toml:"cache"`
	VirtualSporulationStart float64 `toml:"virtual_sporulation_start"`
}

func (k *KernelConfig) Validate() error {
	switch k.Mode {
	case "exponential":
		if k.Scale <= 0 {
			return errors.Errorf(InvalidFloatParameterError, "scale", k.Scale, "must be positive")
		}
	case "nonspatial":
		if k.NonspatialRate < 0 {
			return errors.Errorf(InvalidFloatParameterError, "nonspatial_rate", k.NonspatialRate, "must be non-negative")
		}
	case "raster":
		if k.RasterFile == "" {
			return errors.Errorf(MissingRequiredKeyError, "raster_file", "kernel")
		}
	default:
		return errors.Errorf(UnrecognizedKeywordError, k.Mode, "kernel.mode")
	}
	return nil
}

// RateStructureConfig selects which RateStructure variant backs each
// channel: "sum", "interval", "tree", or "cr".
type RateStructureConfig struct {
	Infection string `toml:"infection"`
	Advance   string `toml:"advance"`
}

var validRateStructureKinds = map[string]bool{"sum": true, "interval": true, "tree": true, "cr": true}

func (r *RateStructureConfig) Validate() error {
	if r.Infection == "" {
		r.Infection = "tree"
	}
	if r.Advance == "" {
		r.Advance = "sum"
	}
	if !validRateStructureKinds[r.Infection] {
		return errors.Errorf(UnrecognizedKeywordError, r.Infection, "rate_structure.infection")
	}
	if !validRateStructureKinds[r.Advance] {
		return errors.Errorf(UnrecognizedKeywordError, r.Advance, "rate_structure.advance")
	}
	return nil
}

// InterventionConfig describes one pluggable controller to register,
// resolved to a concrete Intervention by BuildInterventions.
type InterventionConfig struct {
	Type          string  `toml:"type"` // "region_cull" or "scheduled_surveillance"
	Region        string  `toml:"region"`
	CullRate      float64 `toml:"cull_rate"`
	Budget        int     `toml:"budget"`
	UpdateFreq    float64 `toml:"update_freq"`
	SweepBudget   int     `toml:"sweep_budget"`
	DetectionProb float64 `toml:"detection_prob"`
}

func (iv *InterventionConfig) Validate() error {
	switch iv.Type {
	case "region_cull":
		if iv.Region == "" {
			return errors.Errorf(MissingRequiredKeyError, "region", "interventions")
		}
		if iv.CullRate <= 0 {
			return errors.Errorf(InvalidFloatParameterError, "cull_rate", iv.CullRate, "must be positive")
		}
	case "scheduled_surveillance":
		if iv.Region == "" {
			return errors.Errorf(MissingRequiredKeyError, "region", "interventions")
		}
		if iv.UpdateFreq <= 0 {
			return errors.Errorf(InvalidFloatParameterError, "update_freq", iv.UpdateFreq, "must be positive")
		}
		if iv.DetectionProb < 0 || iv.DetectionProb > 1 {
			return errors.Errorf(InvalidFloatParameterError, "detection_prob", iv.DetectionProb, "must be in [0, 1]")
		}
	default:
		return errors.Errorf(UnknownInterventionKindErr, iv.Type)
	}
	return nil
}

// OutputConfig selects the DataLogger backend and output cadence.
type OutputConfig struct {
	BasePath         string  `toml:"base_path"`
	Logger           string  `toml:"logger"` // "csv" or "sqlite"
	RasterOutputFreq float64 `toml:"raster_output_freq"`
}

func (o *OutputConfig) Validate() error {
	if o.BasePath == "" {
		return errors.Errorf(MissingRequiredKeyError, "base_path", "output")
	}
	switch o.Logger {
	case "", "csv":
		o.Logger = "csv"
	case "sqlite":
	default:
		return errors.Errorf(UnrecognizedKeywordError, o.Logger, "output.logger")
	}
	if o.RasterOutputFreq < 0 {
		return errors.Errorf(InvalidFloatParameterError, "raster_output_freq", o.RasterOutputFreq, "must be non-negative")
	}
	return nil
}

// RunConfig controls the top-level driver loop.
type RunConfig struct {
	Seed              int64   `toml:"seed"`
	Iterations        int     `toml:"iterations"`
	FinalTime         float64 `toml:"final_time"`
	SaveSetup         bool    `toml:"save_setup"`
	UpdateOnAllEvents bool    `toml:"update_on_all_events"`
}

func (r *RunConfig) Validate() error {
	if r.Iterations <= 0 {
		return errors.Errorf(InvalidIntParameterError, "iterations", r.Iterations, "must be positive")
	}
	if r.FinalTime <= 0 {
		return errors.Errorf(InvalidFloatParameterError, "final_time", r.FinalTime, "must be positive")
	}
	return nil
}
