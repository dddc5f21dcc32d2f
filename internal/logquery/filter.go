package logquery

import (
	"strings"
	"time"
)

// Logic selects how content (include/exclude) rules combine. Date-range
// rules always combine with AND regardless of the query's logic.
type Logic int

const (
	LogicAnd Logic = iota
	LogicOr
)

// ParseLogic maps a free-form logic value to a Logic. The comparison is
// case-insensitive and anything unrecognized falls back to AND.
func ParseLogic(s string) Logic {
	if strings.EqualFold(strings.TrimSpace(s), "OR") {
		return LogicOr
	}
	return LogicAnd
}

func (l Logic) String() string {
	if l == LogicOr {
		return "OR"
	}
	return "AND"
}

// Kind discriminates filter specifications.
type Kind int

const (
	KindDateRange Kind = iota
	KindInclude
	KindExclude
)

// Spec is a single declarative filter: a timestamp range or a content term.
// Multiple specs of the same kind may coexist in one query.
type Spec struct {
	Kind  Kind
	Term  string     // include/exclude term
	Start *time.Time // date-range lower bound, inclusive
	End   *time.Time // date-range upper bound, inclusive
}

// DateRange builds a date-range spec; either bound may be nil.
func DateRange(start, end *time.Time) Spec {
	return Spec{Kind: KindDateRange, Start: start, End: end}
}

// Include builds a spec matching lines that contain term.
func Include(term string) Spec {
	return Spec{Kind: KindInclude, Term: term}
}

// Exclude builds a spec matching lines that do not contain term.
func Exclude(term string) Spec {
	return Spec{Kind: KindExclude, Term: term}
}

type dateRule struct {
	start, end *time.Time
}

type contentRule struct {
	term    string
	exclude bool
}

// Plan is a compiled, reusable predicate over log lines. Compilation
// partitions date rules from content rules and pre-lowercases terms for
// case-insensitive queries, so evaluating a line costs no allocations beyond
// the single lowercased copy of the candidate when case folding is on.
type Plan struct {
	dates         []dateRule
	contents      []contentRule
	logic         Logic
	caseSensitive bool
}

// Compile builds a Plan from specs. A nil Plan is returned when specs is
// empty: nil means "no filtering" and Matches on it accepts every line, so
// callers can skip evaluation entirely.
func Compile(specs []Spec, logic Logic, caseSensitive bool) *Plan {
	if len(specs) == 0 {
		return nil
	}
	p := &Plan{logic: logic, caseSensitive: caseSensitive}
	for _, s := range specs {
		switch s.Kind {
		case KindDateRange:
			p.dates = append(p.dates, dateRule{start: s.Start, end: s.End})
		case KindInclude, KindExclude:
			term := s.Term
			if !caseSensitive {
				term = strings.ToLower(term)
			}
			p.contents = append(p.contents, contentRule{term: term, exclude: s.Kind == KindExclude})
		}
	}
	return p
}

// Matches reports whether line passes the plan.
//
// Date rules run first: a line without a timestamp can never satisfy a date
// filter, and every date rule must pass individually. Content rules then
// combine under the plan's logic — AND requires every include present and
// every exclude absent; OR accepts on the first rule satisfied in its own
// sense (include present, or exclude absent). Both paths short-circuit.
func (p *Plan) Matches(line string) bool {
	if p == nil {
		return true
	}

	if len(p.dates) > 0 {
		ts, ok := ExtractTimestamp(line)
		if !ok {
			return false
		}
		for _, d := range p.dates {
			if d.start != nil && ts.Before(*d.start) {
				return false
			}
			if d.end != nil && ts.After(*d.end) {
				return false
			}
		}
	}

	if len(p.contents) == 0 {
		return true
	}

	candidate := line
	if !p.caseSensitive {
		candidate = strings.ToLower(line)
	}

	if p.logic == LogicOr {
		for _, c := range p.contents {
			if strings.Contains(candidate, c.term) != c.exclude {
				return true
			}
		}
		return false
	}

	for _, c := range p.contents {
		if strings.Contains(candidate, c.term) == c.exclude {
			return false
		}
	}
	return true
}
