package planner

import (
	"fmt"

	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/log"
)

// OptimizationRule represents a rule that transforms logical plans.
type OptimizationRule interface {
	// Apply attempts to apply this rule to the given plan. It returns
	// the transformed plan and true if the rule was applied. Rules never
	// mutate their input; a returned error aborts planning.
	Apply(plan LogicalPlan) (LogicalPlan, bool, error)
	// Name identifies the rule for configuration and logging.
	Name() string
}

// Optimizer applies optimization rules to logical plans.
type Optimizer struct {
	rules    []OptimizationRule
	disabled map[string]bool
	logger   log.Logger
}

// NewOptimizer creates a new optimizer with the default rule set.
func NewOptimizer(changelog catalog.ChangelogOptions) *Optimizer {
	return &Optimizer{
		rules: []OptimizationRule{
			&ProjectionPushdown{},
			&PushProjectIntoScan{Changelog: changelog},
		},
		disabled: make(map[string]bool),
		logger:   log.Default(),
	}
}

// DisableRule turns a rule off by name.
func (o *Optimizer) DisableRule(name string) {
	o.disabled[name] = true
}

// Optimize applies all enabled rules to a plan until no more changes
// occur. The fingerprint set bounds repeated application: a plan shape
// seen before means the rules are cycling rather than converging.
func (o *Optimizer) Optimize(plan LogicalPlan) (LogicalPlan, error) {
	const maxIterations = 20

	seenPlans := make(map[string]bool)

	for i := 0; i < maxIterations; i++ {
		fingerprint := planFingerprint(plan)
		if seenPlans[fingerprint] {
			break
		}
		seenPlans[fingerprint] = true

		changed := false
		for _, rule := range o.rules {
			if o.disabled[rule.Name()] {
				continue
			}
			newPlan, applied, err := rule.Apply(plan)
			if err != nil {
				return nil, err
			}
			if applied && planFingerprint(newPlan) != planFingerprint(plan) {
				o.logger.Debug("optimization rule applied",
					log.String("rule", rule.Name()),
					log.Int("iteration", i))
				plan = newPlan
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	return plan, nil
}

// planFingerprint generates a unique string representation of the entire
// plan tree. Unlike String(), this includes all child nodes to properly
// detect structural changes.
func planFingerprint(plan Plan) string {
	if plan == nil {
		return "nil"
	}

	result := fmt.Sprintf("%T:%s", plan, plan.String())

	children := plan.Children()
	if len(children) > 0 {
		result += "["
		for i, child := range children {
			if i > 0 {
				result += ","
			}
			result += planFingerprint(child)
		}
		result += "]"
	}

	return result
}
