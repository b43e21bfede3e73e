package common

import (
	"fmt"
	"strconv"

	"github.com/levenlabs/go-lflag"
)

// Float64Flag registers a float-valued flag as a string param, since lflag
// has no float type. The returned getter parses the value and must only be
// called after lflag.Configure has run, typically inside lflag.Do.
func Float64Flag(name string, def float64, usage string) func() float64 {
	s := lflag.String(name, strconv.FormatFloat(def, 'f', -1, 64), usage)
	return func() float64 {
		return mustParseFloat(name, *s)
	}
}

func mustParseFloat(name, raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid value %q for --%s: %v", raw, name, err))
	}
	return v
}
