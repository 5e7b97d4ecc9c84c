package engine

import (
	"sort"
	"strings"
	"unicode"

	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// definedName is a workbook- or sheet-scoped name. Its formula is
// compiled with absolute coordinates anchored at A1 of its scope sheet.
type definedName struct {
	scope value.SheetID
	name  string
	src   *formula.Formula
	expr  compiler.Expr
}

type nameKey struct {
	scope value.SheetID
	fold  string
}

// DefineName binds name to formula text. An empty scope defines a
// workbook name; otherwise scope names the sheet the name belongs to.
// Redefining a name replaces it.
func (w *Workbook) DefineName(scope, name, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	scopeID, err := w.scopeID(scope, "DefineName")
	if err != nil {
		return err
	}
	if !validName(name) {
		return invalid("invalid name %q", name).WithOperation("DefineName")
	}
	f, err := formula.Parse(text, w.loc)
	if err != nil {
		return NewError(ErrCodeParse, "name formula does not parse", err).
			WithOperation("DefineName").WithDetail("name", name)
	}
	dn := &definedName{scope: scopeID, name: name, src: f}
	if err := w.compileName(dn); err != nil {
		return NewError(ErrCodeCompile, "name formula does not compile", err).
			WithOperation("DefineName").WithDetail("name", name)
	}

	w.names[nameKey{scope: scopeID, fold: value.FoldText(name)}] = dn
	w.mutated = true
	w.dirtyNameReaders()
	return nil
}

// RemoveName deletes a defined name. Formulas using it read #NAME?.
func (w *Workbook) RemoveName(scope, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	scopeID, err := w.scopeID(scope, "RemoveName")
	if err != nil {
		return err
	}
	key := nameKey{scope: scopeID, fold: value.FoldText(name)}
	if _, ok := w.names[key]; !ok {
		return notFound("unknown name %q", name).WithOperation("RemoveName")
	}
	delete(w.names, key)
	w.mutated = true
	w.dirtyNameReaders()
	return nil
}

// NameFormula returns the canonical text of a defined name.
func (w *Workbook) NameFormula(scope, name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	scopeID, err := w.scopeID(scope, "NameFormula")
	if err != nil {
		return "", false
	}
	dn, ok := w.names[nameKey{scope: scopeID, fold: value.FoldText(name)}]
	if !ok {
		return "", false
	}
	return "=" + dn.src.String(), true
}

// Names lists defined names as "Name" or "Sheet!Name", sorted.
func (w *Workbook) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.names))
	for _, dn := range w.names {
		if sh := w.sheet(dn.scope); sh != nil {
			out = append(out, formula.FormatSheetName(sh.name, false)+"!"+dn.name)
		} else {
			out = append(out, dn.name)
		}
	}
	sort.Strings(out)
	return out
}

// NameDefinition is a defined name as DefineName accepts it.
type NameDefinition struct {
	// Scope is the owning sheet, empty for workbook names.
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Name  string `yaml:"name" json:"name" validate:"required"`
	// Formula is the text in the workbook locale, with "=".
	Formula string `yaml:"formula" json:"formula" validate:"required"`
}

// NameDefinitions returns every defined name sorted by scope, then name.
func (w *Workbook) NameDefinitions() []NameDefinition {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]NameDefinition, 0, len(w.names))
	for _, dn := range w.names {
		nd := NameDefinition{Name: dn.name, Formula: "=" + dn.src.Format(w.loc)}
		if sh := w.sheet(dn.scope); sh != nil {
			nd.Scope = sh.name
		}
		out = append(out, nd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (w *Workbook) scopeID(scope, op string) (value.SheetID, error) {
	if scope == "" {
		return 0, nil
	}
	sh, ok := w.byName[value.FoldText(scope)]
	if !ok {
		return 0, notFound("unknown sheet %q", scope).WithOperation(op)
	}
	return sh.id, nil
}

func (w *Workbook) compileName(dn *definedName) error {
	anchor := dn.scope
	if anchor == 0 && len(w.sheets) > 0 {
		anchor = w.sheets[0].id
	}
	expr, err := compiler.CompileFormula(dn.src, compiler.Env{
		Sheet:   anchor,
		Style:   w.opts.Style,
		Mode:    compiler.Absolute,
		Catalog: w.view,
	})
	if err != nil {
		return err
	}
	dn.expr = expr
	return nil
}

// recompileNames refreshes names after the sheet set changed.
func (w *Workbook) recompileNames() {
	changed := false
	for _, dn := range w.names {
		before := compiler.Fingerprint(dn.expr)
		if err := w.compileName(dn); err != nil {
			continue
		}
		if compiler.Fingerprint(dn.expr) != before {
			changed = true
		}
	}
	if changed {
		w.dirtyNameReaders()
	}
}

// dirtyNameReaders marks every formula that uses a defined name dirty.
// Names can refer to other names, so readers of any name are included.
func (w *Workbook) dirtyNameReaders() {
	for _, sh := range w.sheets {
		for _, fc := range sh.sortedFormulas() {
			if len(fc.static.Names) > 0 {
				w.markDirty(fc)
			}
		}
	}
}

// lookupName tries the sheet scope first and then, for unqualified
// names, the workbook scope.
func (w *Workbook) lookupName(sheet value.SheetID, name string, qualified bool) (*definedName, bool) {
	fold := value.FoldText(name)
	if dn, ok := w.names[nameKey{scope: sheet, fold: fold}]; ok && sheet != 0 {
		return dn, true
	}
	if qualified {
		return nil, false
	}
	dn, ok := w.names[nameKey{fold: fold}]
	return dn, ok
}

// validName accepts identifiers that cannot be read as a cell address or
// a boolean.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_' || r == '\\':
		case i > 0 && (unicode.IsDigit(r) || r == '.'):
		default:
			return false
		}
	}
	upper := strings.ToUpper(name)
	if upper == "TRUE" || upper == "FALSE" {
		return false
	}
	if _, ok := value.ParseA1(name); ok {
		return false
	}
	return !isR1C1Name(upper)
}

// isR1C1Name reports names like "R", "C", "R1C1" or "RC2" that R1C1
// notation would read as references.
func isR1C1Name(upper string) bool {
	if upper == "R" || upper == "C" {
		return true
	}
	if !strings.HasPrefix(upper, "R") {
		return false
	}
	rest := strings.TrimLeft(upper[1:], "0123456789")
	if rest == "" {
		return true
	}
	if !strings.HasPrefix(rest, "C") {
		return false
	}
	return strings.TrimLeft(rest[1:], "0123456789") == ""
}
