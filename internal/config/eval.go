package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/joho/godotenv"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Environ returns the process environment, optionally extended by a
// dotenv file. Variables from the file override inherited ones, so a
// checked-in .env can pin pipeline behavior.
func Environ(envFile string) ([]string, error) {
	environ := os.Environ()
	if envFile == "" {
		return environ, nil
	}

	extra, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", envFile, err)
	}
	for k, v := range extra {
		environ = append(environ, k+"="+v)
	}
	return environ, nil
}

// EvalContext builds the root evaluation context for step argument
// expressions: `env.*` for environment variables and `pipeline.*` for
// the pipeline settings.
func (m *Model) EvalContext(environ []string) *hcl.EvalContext {
	envVals := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			envVals[k] = cty.StringVal(v)
		}
	}
	envVar := cty.EmptyObjectVal
	if len(envVals) > 0 {
		envVar = cty.ObjectVal(envVals)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envVar,
			"pipeline": cty.ObjectVal(map[string]cty.Value{
				"package":   cty.StringVal(m.Settings.Package),
				"cover_dir": cty.StringVal(m.Settings.CoverDir),
			}),
		},
	}
}

// DecodeStepBody binds a step's runner arguments onto the runner's
// typed input struct using the given evaluation context.
func DecodeStepBody(body hcl.Body, evalCtx *hcl.EvalContext, target any) error {
	if diags := gohcl.DecodeBody(body, evalCtx, target); diags.HasErrors() {
		return fmt.Errorf("decoding step arguments: %w", diags)
	}
	return nil
}

// ToCtyObject converts a runner's native output map into a cty object
// so later steps can reference it in expressions. Supported value
// kinds are those gocty can imply a type for (strings, bools, numbers
// and homogeneous lists and maps of them).
func ToCtyObject(outputs map[string]any) (cty.Value, error) {
	if len(outputs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	vals := make(map[string]cty.Value, len(outputs))
	for name, v := range outputs {
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("output %q: %w", name, err)
		}
		cv, err := gocty.ToCtyValue(v, ty)
		if err != nil {
			return cty.NilVal, fmt.Errorf("output %q: %w", name, err)
		}
		vals[name] = cv
	}
	return cty.ObjectVal(vals), nil
}
