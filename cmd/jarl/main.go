package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/clarete/jarl"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "Path to the .jarl script to run")
		configPath = flag.String("config", "jarl.toml", "Path to an optional TOML config file")
		trace      = flag.Bool("trace", false, "Print each executed instruction to stdout")
	)
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("Input script not informed")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Can't load config: %s", err.Error())
	}
	if *trace {
		cfg.SetBool("vm.trace", true)
	}

	source, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Can't open input file: %s", err.Error())
	}

	fn, err := jarl.Compile(source)
	if err != nil {
		if diags, ok := err.(jarl.Diagnostics); ok {
			for _, d := range diags {
				fmt.Fprintln(os.Stderr, d.Error())
			}
			os.Exit(1)
		}
		log.Fatal(err)
	}

	v, err := jarl.NewVM(cfg).Run(fn)
	if err != nil {
		// Run already wrote the diagnostic to the VM's error sink
		// (by default the print sink, stdout); just set the exit code.
		os.Exit(1)
	}
	if v.Tag() != jarl.TagNone {
		fmt.Println(v.String())
	}
}
