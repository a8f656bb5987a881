// Package predicate evaluates user-supplied JavaScript boolean expressions
// against account records, using an embedded goja runtime. It backs the
// sales_tools_bucket priority item and custom stability-lock predicates.
package predicate

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/fieldcompass/territory-engine/infrastructure/cache"
)

// EvalBudget bounds how long a single predicate evaluation may run before it
// is interrupted and treated as false.
const EvalBudget = 50 * time.Millisecond

// AccountFields is the plain-object view of an account exposed to predicate
// scripts as the `account` global.
type AccountFields struct {
	ARR         float64 `json:"arr"`
	Employees   int     `json:"employees"`
	Tier        string  `json:"tier"`
	Geo         string  `json:"geo"`
	IsCustomer  bool    `json:"is_customer"`
	IsStrategic bool    `json:"is_strategic"`
}

// Engine compiles and evaluates predicate scripts, caching compiled
// *goja.Program values per source string so repeated evaluation across many
// accounts does not re-parse JS on every call.
type Engine struct {
	programs *cache.Cache
}

// New creates a predicate Engine with a fresh program cache.
func New() *Engine {
	return &Engine{programs: cache.NewCache(cache.DefaultConfig())}
}

// Eval compiles (or reuses a cached compilation of) js and evaluates it
// against fields, with `account` and `sales_tools_threshold` bound as
// globals. A non-boolean result is converted by JavaScript truthiness. A
// script that throws or exceeds EvalBudget evaluates to false with a non-nil
// error; the caller is responsible for logging that as a
// warning, not aborting the run.
func (e *Engine) Eval(js string, fields AccountFields, threshold float64) (result bool, evalErr error) {
	prog, err := e.compile(js)
	if err != nil {
		return false, fmt.Errorf("compile predicate: %w", err)
	}

	vm := goja.New()
	if err := vm.Set("account", fields); err != nil {
		return false, fmt.Errorf("bind account: %w", err)
	}
	if err := vm.Set("sales_tools_threshold", threshold); err != nil {
		return false, fmt.Errorf("bind threshold: %w", err)
	}

	timer := time.AfterFunc(EvalBudget, func() {
		vm.Interrupt("predicate evaluation timed out")
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			result, evalErr = false, fmt.Errorf("predicate panic: %v", r)
		}
	}()

	value, err := vm.RunProgram(prog)
	if err != nil {
		return false, err
	}
	return value.ToBoolean(), nil
}

func (e *Engine) compile(js string) (*goja.Program, error) {
	if cached, ok := e.programs.Get(js); ok {
		return cached.(*goja.Program), nil
	}
	prog, err := goja.Compile("predicate.js", js, false)
	if err != nil {
		return nil, err
	}
	e.programs.Set(js, prog, 0)
	return prog, nil
}

// DefaultSalesToolsPredicate is used when LPConfiguration carries no
// sales_tools_predicate override: low-ARR customers only.
const DefaultSalesToolsPredicate = "account.arr > 0 && account.arr < sales_tools_threshold"

var defaultEngine = struct {
	once sync.Once
	e    *Engine
}{}

// Default returns a process-wide Engine instance, lazily created.
func Default() *Engine {
	defaultEngine.once.Do(func() {
		defaultEngine.e = New()
	})
	return defaultEngine.e
}
