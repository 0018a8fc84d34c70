package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// definitions constrains schema files. Tables are closed, so unknown fields
// are rejected with a position.
const definitions = `
#Type: "string" | "int" | "float" | "bool"

#Link: {
	target: string
	local:  string
	remote: string
	many:   bool | *false
}

#Derived: {
	entity_set?: string
	columns: [string]: #Type
	links?: [string]: #Link
}

#Table: {
	entity_set?: string
	key: [string, ...string]
	columns: [string]: #Type
	links?: [string]: #Link
	derived?: [string]: #Derived
}

table: [string]: #Table
`

// LoadError is a schema file error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadString compiles a single CUE source into a schema.
//
//	table: Products: {
//		key: ["ProductID"]
//		columns: {ProductID: "int", ProductName: "string"}
//	}
func LoadString(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return compile(ctx, v)
}

// LoadDir loads every CUE file of the package in dir into a schema.
func LoadDir(dir string) (*Schema, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema directory: not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Field: "cue", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	return compile(ctx, ctx.BuildInstance(inst))
}

func compile(ctx *cue.Context, v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = ctx.CompileString(definitions, cue.Filename("schema.cue")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &LoadError{Field: "table", Message: "no tables defined", Pos: v.Pos()}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []TableDef
	for iter.Next() {
		def, err := parseTable(iter.Label(), iter.Value(), true)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &LoadError{Field: "table", Message: "no tables defined", Pos: tablesVal.Pos()}
	}

	s, err := Build(defs...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func parseTable(name string, v cue.Value, root bool) (TableDef, error) {
	def := TableDef{Name: name}

	if es := v.LookupPath(cue.ParsePath("entity_set")); es.Exists() {
		s, err := es.String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.EntitySet = s
	}

	if root {
		keyIter, err := v.LookupPath(cue.ParsePath("key")).List()
		if err != nil {
			return def, formatCUEError(err)
		}
		for keyIter.Next() {
			k, err := keyIter.Value().String()
			if err != nil {
				return def, formatCUEError(err)
			}
			def.Key = append(def.Key, k)
		}
	}

	colIter, err := v.LookupPath(cue.ParsePath("columns")).Fields()
	if err != nil {
		return def, formatCUEError(err)
	}
	for colIter.Next() {
		typ, err := colIter.Value().String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.Columns = append(def.Columns, Column{Name: colIter.Label(), Type: ColumnType(typ)})
	}

	if linksVal := v.LookupPath(cue.ParsePath("links")); linksVal.Exists() {
		linkIter, err := linksVal.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for linkIter.Next() {
			var l struct {
				Target string `json:"target"`
				Local  string `json:"local"`
				Remote string `json:"remote"`
				Many   bool   `json:"many"`
			}
			if err := linkIter.Value().Decode(&l); err != nil {
				return def, formatCUEError(err)
			}
			def.Links = append(def.Links, Link{
				Name:   linkIter.Label(),
				Target: l.Target,
				Local:  l.Local,
				Remote: l.Remote,
				Many:   l.Many,
			})
		}
	}

	if derivedVal := v.LookupPath(cue.ParsePath("derived")); derivedVal.Exists() {
		derivedIter, err := derivedVal.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for derivedIter.Next() {
			d, err := parseTable(derivedIter.Label(), derivedIter.Value(), false)
			if err != nil {
				return def, err
			}
			def.Derived = append(def.Derived, d)
		}
	}

	return def, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
