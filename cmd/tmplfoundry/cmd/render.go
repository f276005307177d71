package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/eval"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/lexer"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/locator"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/scope"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/template"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

var (
	renderVars     []string
	renderVarsFile string
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Expand a template file against a var document",
	Long: `Expand a template file, resolving {{ include "path" }} tags against
--workdir and the template file's own directory as search roots.

Variables come from --var name=value (repeatable) and/or a flat
TOML/YAML document given via --vars-file; --var wins on conflict.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringArrayVar(&renderVars, "var", nil, "variable binding (format: name=value)")
	renderCmd.Flags().StringVar(&renderVarsFile, "vars-file", "", "flat TOML or YAML document of variable bindings")
}

func runRender(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	templatePath := args[0]

	loc := locator.New()
	loc.AddDir(dir)
	loc.AddDir(filepath.Dir(filepath.Join(dir, templatePath)))

	f, err := os.Open(filepath.Join(dir, templatePath))
	if err != nil {
		return fmt.Errorf("opening template: %w", err)
	}
	defer f.Close()

	lx := lexer.New(loc, templatePath, f)
	defer lx.Close()

	tpl := template.New()
	ctx := context.Background()
	if err := tpl.Parse(ctx, lx); err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}

	vars, err := loadVars(dir, renderVarsFile, renderVars)
	if err != nil {
		return err
	}

	sc := scope.New()
	for name, v := range vars {
		sc.Define(name, scope.ValueSymbol(v))
	}

	env := &eval.Env{Sink: stdout()}
	return tpl.Expand(ctx, sc, env, stdout())
}

// loadVars merges a flat vars document (TOML or YAML, selected by
// file extension) with --var name=value overrides.
func loadVars(dir, varsFile string, assignments []string) (map[string]value.Value, error) {
	out := make(map[string]value.Value)

	if varsFile != "" {
		data, err := os.ReadFile(filepath.Join(dir, varsFile))
		if err != nil {
			return nil, fmt.Errorf("reading vars file: %w", err)
		}
		raw := make(map[string]any)
		switch filepath.Ext(varsFile) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("parsing vars file as YAML: %w", err)
			}
		default:
			if _, err := toml.Decode(string(data), &raw); err != nil {
				return nil, fmt.Errorf("parsing vars file as TOML: %w", err)
			}
		}
		for k, v := range raw {
			out[k] = goValue(v)
		}
	}

	for _, assignment := range assignments {
		name, raw, ok := strings.Cut(assignment, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q, want name=value", assignment)
		}
		out[name] = value.String(raw)
	}

	return out, nil
}

func goValue(v any) value.Value {
	switch t := v.(type) {
	case bool:
		return value.Bool(t)
	case string:
		return value.String(t)
	case float64:
		return value.F64(t)
	case int:
		return value.F64(float64(t))
	case int64:
		return value.F64(float64(t))
	default:
		return value.String(fmt.Sprintf("%v", t))
	}
}
