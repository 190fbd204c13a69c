// Package redirect matches requests against ordered regex rules and builds redirect responses
package redirect

import (
	"fmt"
	"regexp"
)

// Record is the raw form of a redirect rule as read from configuration
type Record struct {
	Pattern    string
	Rewrite    string
	StatusCode int
}

// InvalidPatternError is returned when a rule pattern does not compile
type InvalidPatternError struct {
	Index   int
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q in rule %d: %v", e.Pattern, e.Index, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Rule is a compiled redirect rule
type Rule struct {
	pattern    *regexp.Regexp
	rewrite    string
	statusCode int
}

// Pattern returns the source text of the rule's regular expression
func (r *Rule) Pattern() string {
	return r.pattern.String()
}

// Template returns the rewrite template
func (r *Rule) Template() string {
	return r.rewrite
}

// StatusCode returns the status code used when the rule matches
func (r *Rule) StatusCode() int {
	return r.statusCode
}

// Rewrite replaces the leftmost match of the rule's pattern in url with the
// expanded template. Text outside the match is kept as is.
// The second return value is false when the pattern does not match.
func (r *Rule) Rewrite(url string) (string, bool) {
	loc := r.pattern.FindStringSubmatchIndex(url)
	if loc == nil {
		return "", false
	}

	dst := make([]byte, 0, len(url)+len(r.rewrite))
	dst = append(dst, url[:loc[0]]...)
	dst = r.pattern.ExpandString(dst, r.rewrite, url, loc)
	dst = append(dst, url[loc[1]:]...)

	return string(dst), true
}

// RuleSet is an ordered, immutable collection of rules.
// It is safe for concurrent use.
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet compiles records in order. It stops at the first pattern that
// fails to compile and returns an *InvalidPatternError.
func NewRuleSet(records []Record) (*RuleSet, error) {
	rules := make([]*Rule, 0, len(records))

	for i, rec := range records {
		re, err := regexp.Compile(rec.Pattern)
		if err != nil {
			return nil, &InvalidPatternError{Index: i, Pattern: rec.Pattern, Err: err}
		}

		rules = append(rules, &Rule{
			pattern:    re,
			rewrite:    rec.Rewrite,
			statusCode: rec.StatusCode,
		})
	}

	return &RuleSet{rules: rules}, nil
}

// Len returns the number of rules
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Rules returns the rules in declaration order
func (s *RuleSet) Rules() []*Rule {
	if s == nil {
		return nil
	}
	out := make([]*Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Match returns the first rule whose pattern is found in url, its index and
// the rewritten url. Index is -1 when nothing matches.
func (s *RuleSet) Match(url string) (*Rule, int, string) {
	if s == nil {
		return nil, -1, ""
	}

	for i, rule := range s.rules {
		if rewritten, ok := rule.Rewrite(url); ok {
			return rule, i, rewritten
		}
	}

	return nil, -1, ""
}
