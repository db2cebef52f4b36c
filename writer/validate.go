package writer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tmarchal/nfparset/astro"
)

// Issue is one validation finding. Findings never block serialization;
// the caller decides whether to submit anyway.
type Issue struct {
	Block   string
	Key     string
	Message string
}

func (i Issue) String() string {
	if i.Key == "" {
		return fmt.Sprintf("%s: %s", i.Block, i.Message)
	}
	return fmt.Sprintf("%s.%s: %s", i.Block, i.Key, i.Message)
}

// Validate checks every block against the catalogue's syntax patterns
// and cross-field rules. The ephemeris service backs the horizon rules;
// passing nil skips them.
func (p *Parset) Validate(svc astro.Service) []Issue {
	p.renumber()

	var issues []Issue
	report := func(issue Issue) {
		issues = append(issues, issue)
		p.log.Warn().Str("block", issue.Block).Str("key", issue.Key).Msg(issue.Message)
	}

	p.eachBlock(func(label string, b *Block) {
		p.checkSyntax(label, b, report)
	})

	programs, err := p.compiledRules()
	if err != nil {
		report(Issue{Block: "rules", Message: err.Error()})
		return issues
	}
	p.eachBlock(func(label string, b *Block) {
		for _, rule := range programs {
			if rule.spec.Scope != b.scope {
				continue
			}
			ok, err := evalRule(rule.prog, b, svc)
			if err != nil {
				// A rule that cannot evaluate has nothing to say about
				// this block.
				continue
			}
			if !ok {
				report(Issue{Block: label, Message: rule.spec.Message})
			}
		}
	})

	return issues
}

func (p *Parset) eachBlock(fn func(label string, b *Block)) {
	fn("Observation", p.Observation)
	for _, anabeam := range p.analog {
		fn(fmt.Sprintf("Anabeam[%d]", anabeam.index), anabeam.Block)
		for _, numbeam := range anabeam.numerical {
			fn(fmt.Sprintf("Beam[%d]", numbeam.index), numbeam)
		}
	}
	fn("Output", p.Output)
}

func (p *Parset) checkSyntax(label string, b *Block, report func(Issue)) {
	for _, spec := range b.specs {
		entry := b.state[spec.Name]
		if !entry.modified || spec.Syntax == "" {
			continue
		}
		if entry.value == "" {
			report(Issue{Block: label, Key: spec.Name, Message: "empty value"})
		}
		if !p.schema.syntax[spec.Syntax].MatchString(entry.value) {
			report(Issue{
				Block:   label,
				Key:     spec.Name,
				Message: fmt.Sprintf("syntax error on %q", entry.value),
			})
		}
	}
}

type compiledRule struct {
	spec RuleSpec
	prog *vm.Program
}

func (p *Parset) compiledRules() ([]compiledRule, error) {
	rules := make([]compiledRule, 0, len(p.schema.Rules))
	for _, spec := range p.schema.Rules {
		prog, err := expr.Compile(spec.Expression, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", spec.Name, err)
		}
		rules = append(rules, compiledRule{spec: spec, prog: prog})
	}
	return rules, nil
}

func evalRule(prog *vm.Program, b *Block, svc astro.Service) (bool, error) {
	env := map[string]any{
		"fields":    b.fieldMap(),
		"timestamp": ruleTimestamp,
		"num":       ruleNum,
		"seconds":   ruleSeconds,
		"elevation": elevationHelper(svc),
	}
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("rule did not evaluate to a boolean")
	}
	return ok, nil
}

func ruleTimestamp(raw string) float64 {
	t, err := time.Parse("2006-01-02T15:04:05Z", raw)
	if err != nil {
		return 0
	}
	return float64(t.Unix())
}

func ruleNum(raw string) float64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

func ruleSeconds(raw string) float64 {
	sec, err := parseDuration(raw)
	if err != nil {
		return 0
	}
	return sec
}

// elevationHelper computes the elevation of an equatorial direction at
// the midpoint of an exposure. Unparseable inputs or a missing service
// yield the zenith so that incomplete blocks pass the horizon rules.
func elevationHelper(svc astro.Service) func(ra, dec, start, duration string) float64 {
	return func(ra, dec, start, duration string) float64 {
		if svc == nil {
			return 90
		}
		raDeg, err := strconv.ParseFloat(ra, 64)
		if err != nil {
			return 90
		}
		decDeg, err := strconv.ParseFloat(dec, 64)
		if err != nil {
			return 90
		}
		startTime, err := time.Parse("2006-01-02T15:04:05Z", start)
		if err != nil {
			return 90
		}
		durSec, err := parseDuration(duration)
		if err != nil {
			return 90
		}
		mid := startTime.Add(time.Duration(durSec * float64(time.Second) / 2))
		hor := svc.ToHorizontal(astro.Equatorial{RA: raDeg, Dec: decDeg}, mid)
		return hor.El
	}
}
