package interpreter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// programLines is the vocabulary random programs are built from.
var programLines = []string{
	`x = "1"`,
	`y = {x}`,
	`പേര് = "നോവൽ"`,
	`പറയു x`,
	`പറയു {x} {പേര്}`,
	`പറയു "lit {x}"`,
	`ചായകട`,
	`വരിക്കു 2`,
	`വരിക്കു z`,
	`എങ്കിൽ x == "1"`,
	`എങ്കിൽ broken`,
	`അവസാനം`,
	`nonsense`,
	``,
	`   `,
}

func buildProgram(indices []int) string {
	lines := make([]string, len(indices))
	for i, idx := range indices {
		lines[i] = programLines[idx]
	}
	return strings.Join(lines, "\n")
}

func TestProperty_RunIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	in := New(WithSleeper(SleeperFunc(func(time.Duration) {})))

	properties.Property("running a program twice yields the same output", prop.ForAll(
		func(indices []int) bool {
			source := buildProgram(indices)
			return in.Run(source) == in.Run(source)
		},
		gen.SliceOf(gen.IntRange(0, len(programLines)-1)),
	))

	properties.Property("output line count equals emitted lines", prop.ForAll(
		func(indices []int) bool {
			res := in.Execute(buildProgram(indices))
			if len(res.Lines) == 0 {
				return res.Output == ""
			}
			return strings.Count(res.Output, "\n") == len(res.Lines)-1
		},
		gen.SliceOf(gen.IntRange(0, len(programLines)-1)),
	))

	properties.TestingRun(t)
}

func TestProperty_LoopCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	in := New(WithSleeper(SleeperFunc(func(time.Duration) {})))

	properties.Property("a loop of n prints emits n lines", prop.ForAll(
		func(n int) bool {
			res := in.Execute(fmt.Sprintf("വരിക്കു %d\nപറയു \"hi\"\nഅവസാനം", n))
			want := n
			if want < 0 {
				want = 0
			}
			return len(res.Lines) == want && len(res.Errors) == 0
		},
		gen.IntRange(-5, 50),
	))

	properties.TestingRun(t)
}

func TestProperty_LiteralPrint(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	in := New(WithSleeper(SleeperFunc(func(time.Duration) {})))

	properties.Property("quoted text prints verbatim even when it names a variable", prop.ForAll(
		func(s string) bool {
			source := fmt.Sprintf("%s = other\nപറയു \"%s\"", "v"+s, "v"+s)
			return in.Run(source) == "v"+s
		},
		gen.AlphaString(),
	))

	properties.Property("text without braces is not changed by substitution", prop.ForAll(
		func(s string) bool {
			v := NewVariables()
			v.Set(s, "value")
			return v.Substitute(s) == s
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
