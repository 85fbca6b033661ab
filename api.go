package jarl

import "golang.org/x/sync/errgroup"

// Execute compiles and runs source against a fresh VM built from cfg (nil
// uses NewConfig's defaults), returning the value of the program's last
// expression. Compile diagnostics and runtime errors are both returned as
// plain errors; callers that need to distinguish them can type-assert to
// Diagnostics or RuntimeError.
func Execute(source []byte, cfg *Config) (Value, error) {
	fn, err := Compile(source)
	if err != nil {
		return Value{}, err
	}
	return NewVM(cfg).Run(fn)
}

// Script is one unit of work for ExecuteAll: a name (used only to label
// its Result; results follow input order) and the source to run.
type Script struct {
	Name   string
	Source []byte
}

// Result is one Script's outcome.
type Result struct {
	Name  string
	Value Value
	Err   error
}

// ExecuteAll runs each of scripts against its own freshly constructed VM
// concurrently, returning one Result per script in the same order as the
// input. Every VM compiles and executes independently; the only state they
// share is the process-wide interned-string table (see intern.go), which is
// mutex-guarded specifically so this kind of concurrent embedding is safe.
//
// A compile or runtime error in one script never aborts the others: errors
// are captured per-script in its Result rather than propagated out of the
// errgroup, so every goroutine returns nil and ExecuteAll's own error is
// always nil.
func ExecuteAll(cfg *Config, scripts ...Script) ([]Result, error) {
	results := make([]Result, len(scripts))
	g := new(errgroup.Group)
	for i, s := range scripts {
		i, s := i, s
		g.Go(func() error {
			v, err := Execute(s.Source, cfg)
			results[i] = Result{Name: s.Name, Value: v, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
