package jarl

import "fmt"

// Config is a flat, dotted-path key/value store for VM tuning knobs,
// the same shape the teacher toolchain uses for its compiler/grammar
// flags. It is deliberately not a nested struct: callers (and the CLI's
// TOML loader) address settings by string path, so new knobs don't
// require touching every call site that builds a Config.
type Config map[string]*cfgVal

// NewConfig creates a configuration primed with the defaults the
// virtual machine needs when no host override is supplied.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("vm.stack_capacity", defaultStackCapacity)
	m.SetBool("vm.trace", false)
	m.SetInt("vm.call_depth_limit", defaultCallDepthLimit)
	return &m
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined: "undefined",
		cfgValType_Bool:      "bool",
		cfgValType_Int:       "int",
		cfgValType_String:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Bool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Int)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_String)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Bool)
		return val.asBool
	}
	panic(fmt.Sprintf("bool setting `%s` does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Int)
		return val.asInt
	}
	panic(fmt.Sprintf("int setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_String)
		return val.asString
	}
	panic(fmt.Sprintf("string setting `%s` does not exist", path))
}
