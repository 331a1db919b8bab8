package buildfile

import (
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/pakego/internal/fileglob"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// newEvalContext exposes defines, environment variables and the helper
// functions to build file expressions.
func newEvalContext(baseDir string, opts Options) *hcl.EvalContext {
	env := opts.Env
	if env == nil {
		env = processEnv()
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": stringObject(opts.Defines),
			"env": stringObject(env),
		},
		Functions: map[string]function.Function{
			"define":    defineFunc(opts.Defines),
			"glob":      globFunc(baseDir),
			"lookup":    stdlib.LookupFunc,
			"pattern":   patternFunc,
			"concat":    stdlib.ConcatFunc,
			"distinct":  stdlib.DistinctFunc,
			"flatten":   stdlib.FlattenFunc,
			"format":    stdlib.FormatFunc,
			"join":      stdlib.JoinFunc,
			"length":    stdlib.LengthFunc,
			"lower":     stdlib.LowerFunc,
			"split":     stdlib.SplitFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"upper":     stdlib.UpperFunc,
		},
	}
}

// defineFunc returns the value of a -D define, or def when it is not set.
func defineFunc(defines map[string]string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
			{Name: "default", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if v, ok := defines[args[0].AsString()]; ok {
				return cty.StringVal(v), nil
			}
			return args[1], nil
		},
	})
}

// globFunc expands a file pattern relative to the build file directory.
func globFunc(baseDir string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "pattern", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.List(cty.String)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			matches, err := fileglob.Glob(baseDir, args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			return stringList(matches), nil
		},
	})
}

// patternFunc derives output paths from input paths.
var patternFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "template", Type: cty.String},
		{Name: "inputs", Type: cty.List(cty.String)},
	},
	Type: function.StaticReturnType(cty.List(cty.String)),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		var inputs []string
		if err := gocty.FromCtyValue(args[1], &inputs); err != nil {
			return cty.NilVal, err
		}
		return stringList(fileglob.Pattern(args[0].AsString(), inputs)), nil
	},
})

func stringList(items []string) cty.Value {
	if len(items) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(items))
	for i, s := range items {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}

func processEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}
