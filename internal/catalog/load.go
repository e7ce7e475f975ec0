package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
)

//go:embed schema.cue
var schemaCUE string

// CompileError is a catalog definition problem, positioned in the CUE source when known.
type CompileError struct {
	Path    string // e.g. "recipe.house.output"
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LoadDir loads every .cue file of the package in dir.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog directory: not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scan catalog directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return build(ctx, value)
}

// LoadString loads a catalog from CUE source. filename is used in error positions.
func LoadString(filename, src string) (*Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return build(ctx, value)
}

func build(ctx *cue.Context, value cue.Value) (*Catalog, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	value = schema.Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	materials, err := parseMaterials(value.LookupPath(cue.ParsePath("material")))
	if err != nil {
		return nil, err
	}
	recipesVal := value.LookupPath(cue.ParsePath("recipe"))
	recipes, err := parseRecipes(recipesVal)
	if err != nil {
		return nil, err
	}
	if err := checkReferences(recipesVal, materials, recipes); err != nil {
		return nil, err
	}

	cat, err := New(materials, recipes)
	if err != nil {
		return nil, &CompileError{Path: "catalog", Message: err.Error(), Pos: value.Pos()}
	}
	return cat, nil
}

func parseMaterials(v cue.Value) ([]domain.Material, error) {
	var out []domain.Material
	if !v.Exists() {
		return out, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		mv := iter.Value()
		m := domain.Material{ID: iter.Label()}

		if m.Name, err = mv.LookupPath(cue.ParsePath("name")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		category, err := mv.LookupPath(cue.ParsePath("category")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Category = domain.Category(category)

		if m.LossRate, err = optionalDecimal(mv, "loss_rate"); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRecipes(v cue.Value) ([]domain.Recipe, error) {
	var out []domain.Recipe
	if !v.Exists() {
		return out, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		rv := iter.Value()
		r := domain.Recipe{ID: iter.Label()}

		if r.Name, err = rv.LookupPath(cue.ParsePath("name")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if r.Name == "" {
			r.Name = r.ID
		}
		if r.OutputMaterialID, err = rv.LookupPath(cue.ParsePath("output")).String(); err != nil {
			return nil, formatCUEError(err)
		}

		list, err := rv.LookupPath(cue.ParsePath("components")).List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			cv := list.Value()
			var c domain.Component
			if c.MaterialID, err = cv.LookupPath(cue.ParsePath("material")).String(); err != nil {
				return nil, formatCUEError(err)
			}
			if c.Ratio, err = decimalOf(cv.LookupPath(cue.ParsePath("ratio"))); err != nil {
				return nil, err
			}
			if c.LossRate, err = optionalDecimal(cv, "loss_rate"); err != nil {
				return nil, err
			}
			r.Components = append(r.Components, c)
		}
		out = append(out, r)
	}
	return out, nil
}

// checkReferences reports the first recipe naming a material the catalog
// does not define, positioned at the offending field.
func checkReferences(recipesVal cue.Value, materials []domain.Material, recipes []domain.Recipe) error {
	known := make(map[string]bool, len(materials))
	for _, m := range materials {
		known[m.ID] = true
	}
	for _, r := range recipes {
		rv := recipesVal.LookupPath(cue.MakePath(cue.Str(r.ID)))
		if !known[r.OutputMaterialID] {
			return &CompileError{
				Path:    fmt.Sprintf("recipe.%s.output", r.ID),
				Message: fmt.Sprintf("unknown material %q", r.OutputMaterialID),
				Pos:     rv.LookupPath(cue.ParsePath("output")).Pos(),
			}
		}
		for i, c := range r.Components {
			if known[c.MaterialID] {
				continue
			}
			return &CompileError{
				Path:    fmt.Sprintf("recipe.%s.components.%d.material", r.ID, i),
				Message: fmt.Sprintf("unknown material %q", c.MaterialID),
				Pos:     rv.LookupPath(cue.MakePath(cue.Str("components"), cue.Index(i), cue.Str("material"))).Pos(),
			}
		}
	}
	return nil
}

func optionalDecimal(v cue.Value, field string) (decimal.NullDecimal, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return decimal.NullDecimal{}, nil
	}
	dv, err := decimalOf(fv)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(dv), nil
}

// decimalOf reads a CUE number from its exact decimal text, never through a
// float64.
func decimalOf(v cue.Value) (decimal.Decimal, error) {
	if k := v.Kind(); k != cue.IntKind && k != cue.FloatKind {
		if err := v.Err(); err != nil {
			return decimal.Zero, formatCUEError(err)
		}
		return decimal.Zero, &CompileError{Path: v.Path().String(), Message: fmt.Sprintf("expected a number, got %s", v.IncompleteKind()), Pos: v.Pos()}
	}
	text, err := v.MarshalJSON()
	if err != nil {
		return decimal.Zero, formatCUEError(err)
	}
	d, err := decimal.NewFromString(string(text))
	if err != nil {
		return decimal.Zero, &CompileError{Path: v.Path().String(), Message: err.Error(), Pos: v.Pos()}
	}
	return d, nil
}

// formatCUEError keeps the first CUE error with its source position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	path := "cue"
	if p := first.Path(); len(p) > 0 {
		path = strings.Join(p, ".")
	}
	msg, args := first.Msg()
	ce := &CompileError{Path: path, Message: fmt.Sprintf(msg, args...)}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
