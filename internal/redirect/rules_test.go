package redirect

import (
	"errors"
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleSet(t *testing.T) {
	records := []Record{
		{Pattern: "^a\\.com/(.*)$", Rewrite: "https://b.com/$1", StatusCode: 301},
		{Pattern: "^c\\.com/", Rewrite: "https://d.com/", StatusCode: 302},
		{Pattern: ".*", Rewrite: "https://catchall/", StatusCode: 307},
	}

	rs, err := NewRuleSet(records)
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())

	for i, rule := range rs.Rules() {
		assert.Equal(t, records[i].Pattern, rule.Pattern())
		assert.Equal(t, records[i].Rewrite, rule.Template())
		assert.Equal(t, records[i].StatusCode, rule.StatusCode())
	}
}

func TestNewRuleSet_Empty(t *testing.T) {
	rs, err := NewRuleSet(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())

	rule, idx, _ := rs.Match("anything/at/all")
	assert.Nil(t, rule)
	assert.Equal(t, -1, idx)
}

func TestNewRuleSet_InvalidPattern(t *testing.T) {
	tests := []struct {
		name      string
		records   []Record
		wantIndex int
		wantPat   string
	}{
		{
			name:      "single open paren",
			records:   []Record{{Pattern: "(", Rewrite: "x", StatusCode: 301}},
			wantIndex: 0,
			wantPat:   "(",
		},
		{
			name: "invalid after valid",
			records: []Record{
				{Pattern: "^ok$", Rewrite: "x", StatusCode: 301},
				{Pattern: "[a-", Rewrite: "y", StatusCode: 302},
				{Pattern: "(", Rewrite: "z", StatusCode: 302},
			},
			wantIndex: 1,
			wantPat:   "[a-",
		},
		{
			name:      "lookahead is not RE2",
			records:   []Record{{Pattern: "foo(?=bar)", Rewrite: "x", StatusCode: 301}},
			wantIndex: 0,
			wantPat:   "foo(?=bar)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := NewRuleSet(tt.records)
			require.Error(t, err)
			assert.Nil(t, rs)

			var ipe *InvalidPatternError
			require.True(t, errors.As(err, &ipe))
			assert.Equal(t, tt.wantIndex, ipe.Index)
			assert.Equal(t, tt.wantPat, ipe.Pattern)
			assert.Contains(t, err.Error(), tt.wantPat)

			var synErr *syntax.Error
			assert.True(t, errors.As(err, &synErr))
		})
	}
}

func TestRule_Rewrite(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		tmpl    string
		url     string
		want    string
		wantOK  bool
	}{
		{
			name:    "anchored numbered group",
			pattern: `^old\.example\.com/(.*)$`,
			tmpl:    "https://new.example.com/$1",
			url:     "old.example.com/page?x=1",
			want:    "https://new.example.com/page?x=1",
			wantOK:  true,
		},
		{
			name:    "braced group",
			pattern: `^([a-z]+)\.com/(.*)$`,
			tmpl:    "https://${1}-site.org/${2}",
			url:     "foo.com/bar",
			want:    "https://foo-site.org/bar",
			wantOK:  true,
		},
		{
			name:    "named group",
			pattern: `^(?P<host>[^/]+)/docs/(?P<page>.*)$`,
			tmpl:    "https://docs.$host/${page}",
			url:     "example.com/docs/intro",
			want:    "https://docs.example.com/intro",
			wantOK:  true,
		},
		{
			name:    "unanchored keeps surrounding text",
			pattern: `/old/`,
			tmpl:    "/new/",
			url:     "site.com/old/page",
			want:    "site.com/new/page",
			wantOK:  true,
		},
		{
			name:    "only leftmost match replaced",
			pattern: `a`,
			tmpl:    "b",
			url:     "aaa",
			want:    "baa",
			wantOK:  true,
		},
		{
			name:    "literal dollar",
			pattern: `^(.*)$`,
			tmpl:    "$$1",
			url:     "x",
			want:    "$1",
			wantOK:  true,
		},
		{
			name:    "missing group expands empty",
			pattern: `^(.*)$`,
			tmpl:    "https://t/$2",
			url:     "x",
			want:    "https://t/",
			wantOK:  true,
		},
		{
			name:    "no match",
			pattern: `^other\.com`,
			tmpl:    "https://x/",
			url:     "site.com/",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := NewRuleSet([]Record{{Pattern: tt.pattern, Rewrite: tt.tmpl, StatusCode: 301}})
			require.NoError(t, err)

			got, ok := rs.Rules()[0].Rewrite(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleSet_FirstMatchWins(t *testing.T) {
	r1 := Record{Pattern: ".*", Rewrite: "https://catchall/", StatusCode: 302}
	r2 := Record{Pattern: "^specific\\.com.*$", Rewrite: "https://specific/", StatusCode: 301}

	rs, err := NewRuleSet([]Record{r1, r2})
	require.NoError(t, err)

	rule, idx, rewritten := rs.Match("specific.com/path")
	require.NotNil(t, rule)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 302, rule.StatusCode())
	assert.Equal(t, "https://catchall/", rewritten)

	swapped, err := NewRuleSet([]Record{r2, r1})
	require.NoError(t, err)

	rule, idx, rewritten = swapped.Match("specific.com/path")
	require.NotNil(t, rule)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 301, rule.StatusCode())
	assert.Equal(t, "https://specific/", rewritten)
}

func TestRuleSet_RulesReturnsCopy(t *testing.T) {
	rs, err := NewRuleSet([]Record{
		{Pattern: "^a", Rewrite: "1", StatusCode: 301},
		{Pattern: "^b", Rewrite: "2", StatusCode: 302},
	})
	require.NoError(t, err)

	rules := rs.Rules()
	rules[0], rules[1] = rules[1], rules[0]

	rule, _, _ := rs.Match("a")
	require.NotNil(t, rule)
	assert.Equal(t, 301, rule.StatusCode())
}
