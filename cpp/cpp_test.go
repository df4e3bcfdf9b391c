package cpp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VariantSync/DiffDetective-sub004/formula"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"+#ifndef FOO", "!(FOO)"},
		{"+#if defined(A) || B()", "A||B__"},
		{"#ifdef A", "A"},
		{"-  #  if A && B", "A&&B"},
		{"#if defined A && defined(B)", "A&&B"},
		{"#if(A)", "(A)"},
		{"#elif X == 1", "X__EQ__1"},
		{"#if VERSION >= 3 // since v3", "VERSION__GEQ__3"},
		{"#if A /* the A feature */ && B", "A&&B"},
		{"#if FOO(bar)", "FOO__bar"},
		{"#if bar(2, foo(baz))", "bar__2__foo__baz"},
		{"#if A<B", "A__LT__B"},
	}

	var x Extractor
	for _, tt := range tests {
		got, err := x.Extract(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestExtract_WithoutCondition(t *testing.T) {
	var x Extractor
	for _, line := range []string{"#if", "+#ifdef   ", "#if // nothing", "#else", "int x;"} {
		_, err := x.Extract(line)
		var extractErr *ExtractError
		assert.True(t, errors.As(err, &extractErr), "expected ExtractError for %q, got %v", line, err)
	}
}

func TestResolverByName(t *testing.T) {
	r, err := ResolverByName("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ResolverByName("marlin")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "!(X)", r.Resolve("DISABLED(X)"))

	_, err = ResolverByName("gcc")
	assert.ErrorContains(t, err, `unknown macro resolver "gcc"`)
}

func TestExtract_MarlinResolver(t *testing.T) {
	x := Extractor{Resolver: MarlinResolver}

	got, err := x.Extract("#if ENABLED(AUTO_BED_LEVELING) && DISABLED(SDSUPPORT)")
	require.NoError(t, err)
	assert.Equal(t, "AUTO_BED_LEVELING&&!(SDSUPPORT)", got)

	f, err := x.Parse("#if ENABLED(AUTO_BED_LEVELING) && DISABLED(SDSUPPORT)")
	require.NoError(t, err)
	assert.True(t, formula.Equal(formula.And{
		formula.Var("AUTO_BED_LEVELING"),
		formula.Not{X: formula.Var("SDSUPPORT")},
	}, f), "got %s", f)
}

func TestParse_FallsBackToLiteral(t *testing.T) {
	var x Extractor
	f, err := x.Parse("#if A & B")
	require.NoError(t, err)
	assert.Equal(t, formula.Var("A&B"), f)
}

func TestParse_Ifndef(t *testing.T) {
	var x Extractor
	f, err := x.Parse("+#ifndef FOO")
	require.NoError(t, err)
	assert.Equal(t, formula.Not{X: formula.Var("FOO")}, f)
}

func TestDirectiveOf(t *testing.T) {
	tests := map[string]Directive{
		"#if A":           If,
		"+#ifdef A":       Ifdef,
		"- # ifndef A":    Ifndef,
		"#elif B":         Elif,
		"#else":           Else,
		"#else // A":      Else,
		" #endif":         Endif,
		"#endif/* A */":   Endif,
		"#if(A)":          If,
		"#include <a.h>":  None,
		"#ifdefined":      None,
		"#define X 1":     None,
		"int a; // #if A": None,
	}
	for line, want := range tests {
		assert.Equal(t, want, DirectiveOf(line), line)
	}
}

func TestIsMacroHeader(t *testing.T) {
	assert.True(t, IsMacroHeader("#define MAX(a, b) \\"))
	assert.True(t, IsMacroHeader("#if A && \\"))
	assert.False(t, IsMacroHeader("  x = 1; \\"))
}

func TestAbstractArithmetics_KeepsLogicalOperators(t *testing.T) {
	assert.Equal(t, "A&&!B||C", AbstractArithmetics("A&&!B||C"))
	assert.Equal(t, "a<<b", AbstractArithmetics("a<<b"))
	assert.Equal(t, "(A)__ADD__(B)", AbstractArithmetics("(A)+(B)"))
}

func TestUnknownDirective(t *testing.T) {
	name, ok := UnknownDirective("+#elifdef A")
	assert.True(t, ok)
	assert.Equal(t, "elifdef", name)

	_, ok = UnknownDirective("#endiff")
	assert.True(t, ok)
	for _, line := range []string{"#ifdef A", "#include <x.h>", "#endif", "int endifx;"} {
		_, ok := UnknownDirective(line)
		assert.False(t, ok, line)
	}
}
