// Package template - Platzhalter-Templates fuer die C-Codeerzeugung
// Hauptmodul: Template-Deklaration, Platzhalter-Ersetzung und Bindungspruefung
package template

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// ErrTemplateBinding is returned when a kernel executes a template without a
// value for one of its declared placeholders. It points at a defect in the
// calling kernel rather than at the input graph.
var ErrTemplateBinding = errors.New("template binding")

// Values maps placeholder tokens to their substituted value. Values are
// rendered with fmt.Sprint.
type Values map[string]any

// Template is a block of C source text with placeholder tokens. It has no
// control flow: loops are written out in the text and their bounds are
// placeholders like any other.
type Template struct {
	name         string
	raw          string
	placeholders []string
}

// New declares a template. Every placeholder listed must be bound when the
// template is executed.
func New(name, text string, placeholders ...string) *Template {
	set := make(map[string]struct{}, len(placeholders))
	for _, p := range placeholders {
		set[p] = struct{}{}
	}

	return &Template{
		name:         name,
		raw:          text,
		placeholders: slices.Sorted(maps.Keys(set)),
	}
}

// Vars returns the declared placeholders in sorted order.
func (t *Template) Vars() []string {
	return slices.Clone(t.placeholders)
}

// Execute writes the template to w with every declared placeholder
// replaced. Values for tokens the template does not declare are applied as
// well, which lets kernels share a value map between templates.
func (t *Template) Execute(w io.Writer, v Values) error {
	var missing []string
	for _, p := range t.placeholders {
		if _, ok := v[p]; !ok {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: template %q has no value for %s", ErrTemplateBinding, t.name, strings.Join(missing, ", "))
	}

	_, err := io.WriteString(w, Substitute(t.raw, v))
	return err
}

// Render is Execute into a string.
func (t *Template) Render(v Values) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, v); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// Substitute replaces every occurrence of every token in v in a single
// left to right pass. Matches never overlap and, where two tokens match at
// the same position, the longer one wins. Everything else passes through
// unchanged.
func Substitute(s string, v Values) string {
	if len(v) == 0 {
		return s
	}

	keys := slices.SortedFunc(maps.Keys(v), func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	oldnew := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		oldnew = append(oldnew, k, fmt.Sprint(v[k]))
	}

	return strings.NewReplacer(oldnew...).Replace(s)
}
