package spatialsim

import "github.com/pkg/errors"

// Runner drives Config.Run.Iterations independent realizations of a
// Simulator. When SaveSetup is enabled, the population is parsed from
// its input files exactly once and every iteration after the first
// starts from a deep clone of that initial HostStore rather than
// re-reading the files -- the same tradeoff the original driver makes
// between repeatable setup cost and per-iteration memory.
type Runner struct {
	cfg          *Config
	initialStore *HostStore
	stop         StopCondition
}

// NewRunner creates a Runner for cfg. stop, if non-nil, lets every
// iteration end before FinalTime once the condition is satisfied.
func NewRunner(cfg *Config, stop StopCondition) *Runner {
	return &Runner{cfg: cfg, stop: stop}
}

// RunAll runs every configured iteration in turn, returning the first
// error encountered (an iteration's own setup or run failure aborts the
// whole batch, consistent with the rest of the package treating engine
// invariant breaks as unrecoverable).
func (r *Runner) RunAll() error {
	if err := WriteEffectiveConfig(r.cfg); err != nil {
		return errors.Wrap(err, "writing effective configuration log")
	}
	for i := 0; i < r.cfg.Run.Iterations; i++ {
		var store *HostStore
		if r.cfg.Run.SaveSetup {
			if r.initialStore == nil {
				built, err := BuildHostStore(r.cfg.Population)
				if err != nil {
					return errors.Wrapf(err, "building initial population for instance %d", i)
				}
				r.initialStore = built
			}
			store = r.initialStore.Clone()
		}

		seed := r.cfg.Run.Seed + int64(i)
		sim, err := NewSimulator(r.cfg, i, seed, store)
		if err != nil {
			return errors.Wrapf(err, "setting up instance %d", i)
		}
		if err := sim.Run(r.cfg.Run.FinalTime, r.stop); err != nil {
			return errors.Wrapf(err, "running instance %d", i)
		}
	}
	return nil
}
