package main

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/clarete/jarl"
)

// fileConfig mirrors the handful of VM tuning knobs jarl.Config exposes,
// giving the TOML file typed fields to decode into before they get
// overlaid onto the runtime Config.
type fileConfig struct {
	VM struct {
		StackCapacity  int  `toml:"stack_capacity"`
		Trace          bool `toml:"trace"`
		CallDepthLimit int  `toml:"call_depth_limit"`
	} `toml:"vm"`
}

// loadConfig builds a jarl.Config from defaults, then overlays path if it
// exists. A missing file is not an error: the CLI is expected to run fine
// with no jarl.toml present at all.
func loadConfig(path string) (*jarl.Config, error) {
	cfg := jarl.NewConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var fc fileConfig
	fc.VM.StackCapacity = cfg.GetInt("vm.stack_capacity")
	fc.VM.CallDepthLimit = cfg.GetInt("vm.call_depth_limit")
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, err
	}

	cfg.SetInt("vm.stack_capacity", fc.VM.StackCapacity)
	cfg.SetBool("vm.trace", fc.VM.Trace)
	cfg.SetInt("vm.call_depth_limit", fc.VM.CallDepthLimit)
	return cfg, nil
}
