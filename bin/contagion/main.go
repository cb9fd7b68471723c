package main

import (
	"flag"
	"log"
	"runtime"
	"time"

	spatialsim "github.com/ehbussell/SpatialSimulator"
)

func main() {
	numCPUPtr := flag.Int("threads", runtime.NumCPU(), "number of CPU threads")
	flag.Parse()

	runtime.GOMAXPROCS(*numCPUPtr)

	configPath := flag.Arg(0)
	if configPath == "" {
		log.Fatal("usage: contagion <config.toml>")
	}
	conf, err := spatialsim.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	runner := spatialsim.NewRunner(conf, spatialsim.NewEpidemicExtinctCondition())
	start := time.Now()
	if err := runner.RunAll(); err != nil {
		log.Fatal(err)
	}
	log.Printf("completed all %d instances in %s", conf.Run.Iterations, time.Since(start))
}
