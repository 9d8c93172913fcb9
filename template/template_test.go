package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubstitute(t *testing.T) {
	cases := []struct {
		name string
		text string
		vals Values
		want string
	}{
		{
			name: "simple",
			text: "for (int i = 0; i < element_count; ++i) out[i] = OPERATION;",
			vals: Values{"element_count": 10, "OPERATION": "a + b"},
			want: "for (int i = 0; i < 10; ++i) out[i] = a + b;",
		},
		{
			name: "longest token wins",
			text: "SUM_D_TYPE s; D_TYPE v;",
			vals: Values{"D_TYPE": "int8_t", "SUM_D_TYPE": "int32_t"},
			want: "int32_t s; int8_t v;",
		},
		{
			name: "no rescan of substituted text",
			text: "A B",
			vals: Values{"A": "B", "B": "A"},
			want: "B A",
		},
		{
			name: "every occurrence",
			text: "x_coeff * x + x_coeff",
			vals: Values{"x_coeff": 3},
			want: "3 * x + 3",
		},
		{
			name: "unknown tokens pass through",
			text: "KNOWN UNKNOWN",
			vals: Values{"KNOWN": "k"},
			want: "k UNKNOWN",
		},
		{
			name: "empty values",
			text: "D_TYPE",
			vals: nil,
			want: "D_TYPE",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(tt.text, tt.vals)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteMissingBinding(t *testing.T) {
	tmpl := New("pool", "D_TYPE v = lowest_possible;", "D_TYPE", "lowest_possible")

	_, err := tmpl.Render(Values{"D_TYPE": "float"})
	if !errors.Is(err, ErrTemplateBinding) {
		t.Fatalf("expected ErrTemplateBinding, got %v", err)
	}

	if !strings.Contains(err.Error(), "lowest_possible") {
		t.Errorf("error should name the missing placeholder: %v", err)
	}
}

func TestExecute(t *testing.T) {
	tmpl := New("pool", "D_TYPE v = lowest_possible;", "lowest_possible", "D_TYPE", "D_TYPE")

	if diff := cmp.Diff([]string{"D_TYPE", "lowest_possible"}, tmpl.Vars()); diff != "" {
		t.Errorf("vars mismatch (-want +got):\n%s", diff)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, Values{"D_TYPE": "float", "lowest_possible": "-FLT_MAX"}); err != nil {
		t.Fatal(err)
	}

	if got, want := sb.String(), "float v = -FLT_MAX;"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
