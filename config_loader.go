package spatialsim

import (
	"math/rand"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// LoadConfig decodes and validates a TOML configuration file, mirroring
// evoepi_config_loader.go's toml.DecodeFile + Validate() sequence.
func LoadConfig(path string) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding configuration file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating configuration")
	}
	return cfg, nil
}

// BuildRateStructure is the factory mapping a RateStructureConfig kind
// string to a concrete RateStructure instance, sized for n indices.
func BuildRateStructure(kind string, n int, rng *rand.Rand) (RateStructure, error) {
	switch kind {
	case "sum":
		return NewRateSum(n), nil
	case "interval":
		return NewRateInterval(n), nil
	case "tree":
		return NewRateTree(n), nil
	case "cr":
		return NewRateCR(n, rng), nil
	default:
		return nil, errors.Errorf(UnrecognizedKeywordError, kind, "rate_structure")
	}
}

// BuildKernel is the factory mapping a KernelConfig to a concrete Kernel,
// reading the raster file from disk in raster mode.
func BuildKernel(cfg KernelConfig) (*Kernel, error) {
	switch cfg.Mode {
	case "exponential":
		return NewExponentialKernel(cfg.Scale), nil
	case "nonspatial":
		return NewNonspatialKernel(cfg.NonspatialRate), nil
	case "raster":
		raster, err := ReadRaster(cfg.RasterFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading kernel raster")
		}
		return NewRasterKernel(raster), nil
	default:
		return nil, errors.Errorf(UnrecognizedKeywordError, cfg.Mode, "kernel.mode")
	}
}

// BuildHostStore loads the population input files named in cfg and
// assembles a populated HostStore. In raster mode this delegates to
// BuildRasterHostStore; host and cell mode both read the flat host
// position file below.
func BuildHostStore(cfg PopulationConfig) (*HostStore, error) {
	if cfg.Mode == "raster" {
		return BuildRasterHostStore(cfg)
	}
	records, err := ReadHostFile(cfg.HostFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading host file")
	}
	var initConds map[int]State
	if cfg.InitCondFile != "" {
		initConds, err = ReadInitCond(cfg.InitCondFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading initial conditions")
		}
	}
	var regions map[int]string
	if cfg.RegionFile != "" {
		regions, err = ReadRegions(cfg.RegionFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading regions")
		}
	}

	store := NewHostStore()
	seenCells := make(map[int]bool)
	for _, rec := range records {
		if !seenCells[rec.CellID] {
			if _, err := store.AddCell(rec.CellID, rec.X, rec.Y); err != nil {
				return nil, errors.Wrapf(err, "registering cell %d", rec.CellID)
			}
			seenCells[rec.CellID] = true
		}
		state := Susceptible
		if s, ok := initConds[rec.ID]; ok {
			state = s
		}
		region := regions[rec.ID]
		host := &Host{
			ID:             rec.ID,
			X:              rec.X,
			Y:              rec.Y,
			CellID:         rec.CellID,
			Region:         region,
			State:          state,
			InitState:      state,
			Susceptibility: 1,
			Infectiousness: 1,
		}
		if err := store.AddHost(host); err != nil {
			return nil, errors.Wrapf(err, "registering host %d", rec.ID)
		}
	}
	return store, nil
}

// BuildInterventions is the factory mapping InterventionConfig entries to
// concrete Intervention controllers.
func BuildInterventions(cfgs []InterventionConfig) ([]Intervention, error) {
	out := make([]Intervention, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Type {
		case "region_cull":
			out = append(out, NewRegionCullIntervention(c.Region, c.CullRate, c.Budget))
		case "scheduled_surveillance":
			out = append(out, NewScheduledSurveillanceIntervention(c.Region, c.UpdateFreq, c.SweepBudget, c.DetectionProb))
		default:
			return nil, errors.Errorf(UnknownInterventionKindErr, c.Type)
		}
	}
	return out, nil
}

// BuildAdvanceRates translates the configuration's letter-keyed map into
// a State-keyed map the EventHandler consumes.
func BuildAdvanceRates(m map[string]float64) map[State]float64 {
	out := make(map[State]float64, len(m))
	for letter, rate := range m {
		if len(letter) == 1 {
			out[State(letter[0])] = rate
		}
	}
	return out
}

// WriteEffectiveConfig writes cfg back out as TOML to <base_path>.config.toml,
// so a run's output directory always carries the fully-resolved (defaults
// included) configuration it was produced with, not just whatever subset
// of keys the user supplied in the source file.
func WriteEffectiveConfig(cfg *Config) error {
	f, err := os.Create(cfg.Output.BasePath + ".config.toml")
	if err != nil {
		return errors.Wrap(err, "creating effective configuration file")
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return errors.Wrap(err, "encoding effective configuration")
	}
	return nil
}

// BuildDataLogger is the factory mapping OutputConfig.Logger ("sqlite",
// or anything else for CSV) to a concrete DataLogger backend.
func BuildDataLogger(cfg OutputConfig, iteration int) DataLogger {
	switch cfg.Logger {
	case "sqlite":
		return NewSQLiteLogger(cfg.BasePath, iteration)
	default:
		return NewCSVLogger(cfg.BasePath, iteration)
	}
}
