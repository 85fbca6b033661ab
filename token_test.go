package jarl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindingPowerTiers(t *testing.T) {
	assert.Equal(t, bpNone, KEOF.bindingPower())
	assert.Equal(t, bpAssign, KAssign.bindingPower())
	assert.Equal(t, bpAdditive, KPlus.bindingPower())
	assert.Equal(t, bpAdditive, KMinus.bindingPower())
	assert.Equal(t, bpMultiplic, KMul.bindingPower())
	assert.Equal(t, bpApply, KIdentifier.bindingPower())
	assert.Equal(t, bpApply, KInt.bindingPower())
	assert.Equal(t, bpApply, KLParen.bindingPower())
}

func TestKeywordHeadsAreNudOnly(t *testing.T) {
	for _, k := range []Kind{KIf, KWhile, KFor, KFunc, KVar, KPrint, KAssert, KReturn, KMove} {
		assert.Equal(t, bpNone, k.bindingPower(), "keyword head %s must not continue a led loop", k)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "if", KIf.String())
	assert.Equal(t, "+", KPlus.String())
	assert.Contains(t, Kind(9999).String(), "Kind(")
}

func TestKeywordsTable(t *testing.T) {
	assert.Equal(t, KIf, keywords["if"])
	assert.Equal(t, KNot, keywords["not"])
	_, ok := keywords["nonexistent"]
	assert.False(t, ok)
}
