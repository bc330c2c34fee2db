package policy

import (
	"fmt"
	"math"
	"sync"

	"github.com/dop251/goja"

	"github.com/nullpointer-labs/evmtrader/internal/logx"
)

// Kind distinguishes the two predicate slots a Policy may carry.
type Kind string

const (
	KindEntry Kind = "entry"
	KindExit  Kind = "exit"
)

// cacheKey identifies one compiled predicate; compilation is cached by
// (kind, policy_id) per spec.md §4.5.
type cacheKey struct {
	kind     Kind
	policyID string
}

type compiledPredicate struct {
	program *goja.Program
	err     error // compile failure, cached so it's logged once and never retried
	source  string
}

// Sandbox owns the compile cache for every policy predicate in the
// running config. One Sandbox instance is shared by every pair's
// evaluation.
type Sandbox struct {
	log *logx.Logger

	mu    sync.Mutex
	cache map[cacheKey]*compiledPredicate
}

// New returns an empty Sandbox; predicates are compiled lazily on first
// Evaluate call, per spec.md §4.5.
func New() *Sandbox {
	return &Sandbox{
		log:   logx.New("policy"),
		cache: make(map[cacheKey]*compiledPredicate),
	}
}

// Evaluate compiles (or reuses the cached compilation of) the predicate
// source for policyID/kind and runs it against ctx, returning the action
// percent per spec.md §4.5/§8 (I9): false/0 -> 0; true/100 -> 100; a
// number in [1,99] -> that percent; anything else (including NaN) is
// clamped into [0,100]. A compile failure is logged once (the failed
// compilation is cached) and a runtime error or panic is logged on each
// call; both are treated as "no action" (0), never propagated to the
// caller.
func (s *Sandbox) Evaluate(policyID string, kind Kind, source string, evalCtx *Context) int {
	if source == "" {
		return 0
	}

	predicate := s.compile(policyID, kind, source)
	if predicate.err != nil {
		return 0
	}

	action, err := s.run(predicate.program, evalCtx)
	if err != nil {
		s.log.Printf("predicate runtime error (policy=%s kind=%s): %v", policyID, kind, err)
		return 0
	}
	return action
}

func (s *Sandbox) compile(policyID string, kind Kind, source string) *compiledPredicate {
	key := cacheKey{kind: kind, policyID: policyID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cache[key]; ok && existing.source == source {
		return existing
	}

	program, err := goja.Compile(fmt.Sprintf("policy-%s-%s.js", policyID, kind), wrapPredicate(source), false)
	entry := &compiledPredicate{program: program, err: err, source: source}
	if err != nil {
		s.log.Printf("predicate compile error (policy=%s kind=%s), predicate disabled: %v", policyID, kind, err)
	}
	s.cache[key] = entry
	return entry
}

// wrapPredicate wraps predicate source in an immediately-invoked function
// taking ctx, so the source is a function body: its result must be given
// with an explicit return. A bare expression without return yields
// undefined, which interpretAction treats as no action.
func wrapPredicate(source string) string {
	return "(function(ctx){\n" + source + "\n})(ctx)"
}

// run evaluates a compiled predicate in a fresh goja runtime (predicates
// are expected to be pure and fast, spec.md §4.5, so runtime setup cost
// per call is preferred over any risk of state leaking between policies)
// and interprets its return value per spec.md §4.5/§8.
func (s *Sandbox) run(program *goja.Program, evalCtx *Context) (result int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := vm.Set("ctx", evalCtx); err != nil {
		return 0, fmt.Errorf("bind context: %w", err)
	}

	value, err := vm.RunProgram(program)
	if err != nil {
		return 0, err
	}

	return interpretAction(value), nil
}

// interpretAction maps a predicate's goja return value to an action
// percent per spec.md §4.5 and the I9 table in spec.md §8.
func interpretAction(value goja.Value) int {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return 0
	}

	if b, ok := value.Export().(bool); ok {
		if b {
			return 100
		}
		return 0
	}

	n := value.ToFloat()
	if math.IsNaN(n) {
		return 0
	}
	if n <= 0 {
		return 0
	}
	if n >= 100 {
		return 100
	}
	return int(n)
}
