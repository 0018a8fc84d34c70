package filter

import (
	"fmt"
	"sort"
	"strings"
)

type function struct {
	minArgs int
	maxArgs int
}

func (f function) arity() string {
	if f.minArgs == f.maxArgs {
		return fmt.Sprint(f.minArgs)
	}
	return fmt.Sprintf("%d-%d", f.minArgs, f.maxArgs)
}

var functions = map[string]function{
	"contains":    {2, 2},
	"startswith":  {2, 2},
	"endswith":    {2, 2},
	"substringof": {2, 2},
	"indexof":     {2, 2},
	"length":      {1, 1},
	"tolower":     {1, 1},
	"toupper":     {1, 1},
	"trim":        {1, 1},
	"concat":      {2, 2},
	"year":        {1, 1},
	"month":       {1, 1},
	"day":         {1, 1},
	"round":       {1, 1},
	"floor":       {1, 1},
	"ceiling":     {1, 1},
}

// IsSupportedFunction reports whether a function can be rendered.
// Names are matched case-insensitively.
func IsSupportedFunction(name string) bool {
	_, ok := functions[strings.ToLower(name)]
	return ok
}

// CheckCall validates a call's function name and argument count.
func CheckCall(name string, args int) error {
	fn, ok := functions[strings.ToLower(name)]
	if !ok {
		return &UnsupportedError{Node: "function", Message: fmt.Sprintf("%q", name)}
	}
	if args < fn.minArgs || args > fn.maxArgs {
		return &UnsupportedError{Node: "function", Message: fmt.Sprintf("%s takes %s arguments, got %d", strings.ToLower(name), fn.arity(), args)}
	}
	return nil
}

// SupportedFunctions returns the supported function names, sorted.
func SupportedFunctions() []string {
	out := make([]string, 0, len(functions))
	for name := range functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
