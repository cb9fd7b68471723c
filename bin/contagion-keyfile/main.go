package main

import (
	"flag"
	"fmt"
	"os"
)

// contagion-keyfile prints either an annotated listing of every
// recognised configuration key, or a ready-to-edit default TOML file,
// mirroring code/config.py's write_keyfile/write_default_config.
func main() {
	var writeDefault bool
	flag.BoolVar(&writeDefault, "default-config", false, "print a default TOML configuration instead of the annotated key listing")
	flag.Parse()

	if writeDefault {
		fmt.Print(defaultConfigTOML)
		return
	}
	for _, k := range keyListing {
		fmt.Fprintf(os.Stdout, "[%s]\n  %-24s required=%-5v default=%-10q  %s\n\n", k.section, k.key, k.required, k.defaultVal, k.description)
	}
}

type keyDoc struct {
	section     string
	key         string
	required    bool
	defaultVal  string
	description string
}

var keyListing = []keyDoc{
	{"epidemiology", "model", true, "", "ordered compartment chain, e.g. SEIR"},
	{"epidemiology", "advance_rates", false, "{}", "per-compartment rate of advancing to the next state"},
	{"population", "host_file", true, "", "host position file"},
	{"population", "init_cond_file", false, "", "initial compartment assignment file"},
	{"population", "region_file", false, "", "named region assignment file"},
	{"population", "mode", false, "host", "host, cell, or raster population mode"},
	{"population", "max_hosts", false, "0", "per-cell host capacity, required in cell mode"},
	{"kernel", "mode", true, "", "exponential, nonspatial, or raster"},
	{"kernel", "scale", false, "0", "exponential kernel characteristic distance"},
	{"kernel", "nonspatial_rate", false, "0", "constant rate used by the nonspatial kernel"},
	{"kernel", "raster_file", false, "", "ESRI ASCII raster backing a raster-mode kernel"},
	{"kernel", "virtual_sporulation_start", false, "0", "integer half-width of the coupling window, 0 to disable virtual sporulation"},
	{"interventions", "detection_prob", false, "1.0", "per-host chance a scheduled_surveillance sweep detects an infectious host"},
	{"rate_structure", "infection", false, "tree", "sum, interval, tree, or cr"},
	{"rate_structure", "advance", false, "sum", "sum, interval, tree, or cr"},
	{"output", "base_path", true, "", "output file/table basename"},
	{"output", "logger", false, "csv", "csv or sqlite"},
	{"output", "raster_output_freq", false, "0", "interval between raster snapshots, 0 to disable"},
	{"run", "seed", false, "0", "base RNG seed, offset per iteration"},
	{"run", "iterations", true, "", "number of independent realizations to run"},
	{"run", "final_time", true, "", "simulation end time"},
	{"run", "save_setup", false, "false", "clone the initial population instead of re-parsing it per iteration"},
	{"run", "update_on_all_events", false, "false", "notify interventions after every stochastic event, not just their own cadence"},
}

const defaultConfigTOML = `[epidemiology]
model = "SEIR"

[population]
host_file = "hosts.txt"
mode = "host"

[kernel]
mode = "exponential"
scale = 1.0

[rate_structure]
infection = "tree"
advance = "sum"

[output]
base_path = "output/run"
logger = "csv"
raster_output_freq = 0.0

[run]
seed = 1
iterations = 1
final_time = 100.0
save_setup = false
update_on_all_events = false
`
