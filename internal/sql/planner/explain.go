package planner

import (
	"strings"
)

// Explain renders a plan tree as indented text, one operator per line.
func Explain(plan Plan) string {
	var b strings.Builder
	explainNode(&b, plan, 0)
	return b.String()
}

func explainNode(b *strings.Builder, plan Plan, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(plan.String())
	b.WriteString("\n")
	for _, child := range plan.Children() {
		explainNode(b, child, depth+1)
	}
}
