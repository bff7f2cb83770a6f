package inputmethod

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapFS serves .bim files from memory.
type mapFS map[string]string

func (m mapFS) Open(name string) ([]byte, error) {
	s, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no input method %q", name)
	}
	return []byte(s), nil
}

func bim(name, parent, rules string) string {
	lv := ".. -*- input-method-name: " + name
	if parent != "" {
		lv += "; parental-input-method: " + parent
	}
	lv += " -*-\n.. Bobcat input method\n"
	return lv + rules
}

func TestLoadBuiltin(t *testing.T) {
	tab, err := Load("minimal", Builtin)
	require.NoError(t, err)

	rule, m := tab.MatchAt(Pre, "--> and on")
	require.NotNil(t, rule)
	assert.Equal(t, "-->", m)
	assert.Equal(t, '→', rule.Replacement)

	// The longest match wins.
	rule, m = tab.MatchAt(Pre, "<--> x")
	require.NotNil(t, rule)
	assert.Equal(t, "<-->", m)
	assert.Equal(t, '↔', rule.Replacement)

	// Regexp rules match greedily.
	rule, m = tab.MatchAt(Pre, "..... end")
	require.NotNil(t, rule)
	assert.Equal(t, ".....", m)
	assert.Equal(t, '…', rule.Replacement)

	rule, _ = tab.MatchAt(Post, "'s")
	require.NotNil(t, rule)
	assert.Equal(t, '’', rule.Replacement)

	rule, _ = tab.MatchAt(Pre, "nothing here")
	assert.Nil(t, rule)
}

func TestInheritanceOverride(t *testing.T) {
	fs := mapFS{
		"parent": bim("parent", "", "-->\t⇒\nxx\tØ\n"),
		"child":  bim("child", "parent", "-->\t→\n"),
	}
	tab, err := Load("child", fs)
	require.NoError(t, err)

	// The child's redefinition shadows the parent's rule.
	rule, _ := tab.MatchAt(Pre, "--> x")
	require.NotNil(t, rule)
	assert.Equal(t, '→', rule.Replacement)

	// Untouched parent rules stay in effect.
	rule, _ = tab.MatchAt(Pre, "xx")
	require.NotNil(t, rule)
	assert.Equal(t, 'Ø', rule.Replacement)
}

func TestCombinedTables(t *testing.T) {
	fs := mapFS{
		"greek": bim("greek", "", "alpha\tα\nmu\tµ\n"),
		"math":  bim("math", "", "mu\t∂\n"),
	}
	tab, err := Load("greek, math", fs)
	require.NoError(t, err)

	rule, _ := tab.MatchAt(Pre, "alpha")
	require.NotNil(t, rule)
	assert.Equal(t, 'α', rule.Replacement)

	// On ties, the table listed later wins.
	rule, _ = tab.MatchAt(Pre, "mu")
	require.NotNil(t, rule)
	assert.Equal(t, '∂', rule.Replacement)
}

func TestInheritanceCycle(t *testing.T) {
	fs := mapFS{
		"a": bim("a", "b", ""),
		"b": bim("b", "a", ""),
	}
	_, err := Load("a", fs)
	assert.ErrorContains(t, err, "inherits from itself")
}

func TestTieBreakLatestWins(t *testing.T) {
	// Two rules matching the same text with the same length: origin
	// order decides, the later one wins.
	fs := mapFS{
		"m": bim("m", "", "REGEX::a.\tX\nREGEX::ab\tY\n"),
	}
	tab, err := Load("m", fs)
	require.NoError(t, err)
	rule, _ := tab.MatchAt(Pre, "ab")
	require.NotNil(t, rule)
	assert.Equal(t, 'Y', rule.Replacement)
}

func TestCaptureGroupRejected(t *testing.T) {
	fs := mapFS{"m": bim("m", "", "REGEX::(ab)+\tX\n")}
	_, err := Load("m", fs)
	assert.ErrorContains(t, err, "capturing groups")
}

func TestNumericReplacement(t *testing.T) {
	fs := mapFS{"m": bim("m", "", "=>\t\\#8658;\nto\t\\0x2192;\n")}
	tab, err := Load("m", fs)
	require.NoError(t, err)
	rule, _ := tab.MatchAt(Pre, "=>")
	require.NotNil(t, rule)
	assert.Equal(t, '⇒', rule.Replacement)
	rule, _ = tab.MatchAt(Pre, "to")
	require.NotNil(t, rule)
	assert.Equal(t, '→', rule.Replacement)
}

func TestPostReservedRejected(t *testing.T) {
	fs := mapFS{"m": bim("m", "", "POST::x\t*\n")}
	_, err := Load("m", fs)
	assert.ErrorContains(t, err, "structural character")
}

func TestPostIdempotence(t *testing.T) {
	fs := mapFS{"m": bim("m", "", "POST::x\ty\nPOST::y\tz\n")}
	_, err := Load("m", fs)
	assert.ErrorContains(t, err, "POST replacement")
}

func TestDeclaredNameMismatch(t *testing.T) {
	fs := mapFS{"m": bim("other", "", "")}
	_, err := Load("m", fs)
	assert.ErrorContains(t, err, "declares name")
}

func TestMatchNeverCrossesLineBreak(t *testing.T) {
	fs := mapFS{"m": bim("m", "", "REGEX::a[\\s\\S]b\tX\n")}
	tab, err := Load("m", fs)
	require.NoError(t, err)
	rule, _ := tab.MatchAt(Pre, "a\nb")
	assert.Nil(t, rule)
}
