package tools

import "math/rand"

// Deps carries the backing services for the built-in tool set.
type Deps struct {
	// Facts receives preference and fact writes.
	Facts FactWriter

	// Workspace confines the file tools.
	Workspace *Workspace

	// WeatherRand drives synthetic weather readings; nil seeds from
	// the clock.
	WeatherRand *rand.Rand
}

// Builtin registers the full built-in tool set in its canonical order:
// calculator, file operations, weather, then the memory writers.
func Builtin(deps *Deps) *Registry {
	r := NewRegistry()
	r.Register(Calculator())
	r.Register(ReadFile(deps.Workspace))
	r.Register(WriteFile(deps.Workspace))
	r.Register(ListFiles(deps.Workspace))
	r.Register(Weather(deps.WeatherRand))
	r.Register(StorePreference(deps.Facts))
	r.Register(StoreFact(deps.Facts))
	return r
}
