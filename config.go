package rembed

import "fmt"

// Config is a typed key/value map in the teacher's config.go style
// (SetBool/GetInt/...), seeded with the defaults an Interp needs
// (spec.md §4.1 GC tunables, §4.5 stack sizing, §4.3 heredoc parsing).
type Config map[string]*cfgVal

// NewConfig creates a configuration primed with every default value
// New(*Config) relies on.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("gc.step_ratio", 200)
	m.SetInt("gc.interval_ratio", 200)
	m.SetBool("gc.generational", true)
	m.SetInt("gc.major_threshold", 1<<20)
	m.SetInt("vm.stack_max", 1<<16)
	m.SetInt("arena.size", 4096)
	m.SetBool("parser.heredoc", true)
	return &m
}

type cfgValType int

const (
	cfgValTypeUndefined cfgValType = iota
	cfgValTypeBool
	cfgValTypeInt
	cfgValTypeString
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValTypeUndefined: "undefined",
		cfgValTypeBool:      "bool",
		cfgValTypeInt:       "int",
		cfgValTypeString:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	boolVal  bool
	intVal   int
	stringVal string
}

func (c Config) SetBool(key string, v bool) { c[key] = &cfgVal{typ: cfgValTypeBool, boolVal: v} }
func (c Config) SetInt(key string, v int)   { c[key] = &cfgVal{typ: cfgValTypeInt, intVal: v} }
func (c Config) SetString(key string, v string) {
	c[key] = &cfgVal{typ: cfgValTypeString, stringVal: v}
}

func (c Config) GetBool(key string) bool {
	if v, ok := c[key]; ok && v.typ == cfgValTypeBool {
		return v.boolVal
	}
	return false
}

func (c Config) GetInt(key string) int {
	if v, ok := c[key]; ok && v.typ == cfgValTypeInt {
		return v.intVal
	}
	return 0
}

func (c Config) GetString(key string) string {
	if v, ok := c[key]; ok && v.typ == cfgValTypeString {
		return v.stringVal
	}
	return ""
}

func (c Config) String() string {
	s := ""
	for k, v := range c {
		s += fmt.Sprintf("%s(%s) = %v\n", k, v.typ, c[k])
	}
	return s
}
