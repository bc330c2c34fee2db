package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

func TestEvaluateBooleanAndNumericReturns(t *testing.T) {
	s := New()
	ctx := &Context{CustomData: map[string]interface{}{}, GlobalData: map[string]interface{}{}}

	assert.Equal(t, 0, s.Evaluate("p1", KindEntry, "return false", ctx))
	assert.Equal(t, 100, s.Evaluate("p1", KindEntry, "return true", ctx))
	assert.Equal(t, 0, s.Evaluate("p1", KindEntry, "return 0", ctx))
	assert.Equal(t, 100, s.Evaluate("p1", KindEntry, "return 100", ctx))
	assert.Equal(t, 42, s.Evaluate("p1", KindEntry, "return 42", ctx))
}

func TestEvaluateClampsOutOfRangeNumbers(t *testing.T) {
	s := New()
	ctx := &Context{CustomData: map[string]interface{}{}, GlobalData: map[string]interface{}{}}

	assert.Equal(t, 100, s.Evaluate("p1", KindEntry, "return 250", ctx))
	assert.Equal(t, 0, s.Evaluate("p1", KindEntry, "return -5", ctx))
	assert.Equal(t, 0, s.Evaluate("p1", KindEntry, "return NaN", ctx))
}

func TestEvaluateCompileFailureDisablesPredicate(t *testing.T) {
	s := New()
	ctx := &Context{CustomData: map[string]interface{}{}, GlobalData: map[string]interface{}{}}

	assert.Equal(t, 0, s.Evaluate("p1", KindEntry, "this is not valid javascript {{{", ctx))
	// repeated calls reuse the cached failure rather than recompiling
	assert.Equal(t, 0, s.Evaluate("p1", KindEntry, "this is not valid javascript {{{", ctx))
}

func TestEvaluateRuntimeErrorTreatedAsNoAction(t *testing.T) {
	s := New()
	ctx := &Context{CustomData: map[string]interface{}{}, GlobalData: map[string]interface{}{}}

	assert.Equal(t, 0, s.Evaluate("p1", KindEntry, "throw new Error('boom')", ctx))
}

func TestEvaluateReadsSnakeCaseFields(t *testing.T) {
	s := New()
	ctx := &Context{
		Group:      &model.Group{PriceChangePct: 7.5},
		CustomData: map[string]interface{}{},
		GlobalData: map[string]interface{}{},
	}

	got := s.Evaluate("p1", KindEntry, "return ctx.group.price_change_pct > 5 ? 100 : 0", ctx)
	assert.Equal(t, 100, got)
}

func TestEvaluateCustomDataMutationPersistsAcrossCalls(t *testing.T) {
	s := New()
	ctx := &Context{CustomData: map[string]interface{}{}, GlobalData: map[string]interface{}{}}

	s.Evaluate("p1", KindEntry, "ctx.custom_data.seen = (ctx.custom_data.seen || 0) + 1; return 0", ctx)
	s.Evaluate("p1", KindEntry, "ctx.custom_data.seen = (ctx.custom_data.seen || 0) + 1; return 0", ctx)

	assert.EqualValues(t, 2, ctx.CustomData["seen"])
}
