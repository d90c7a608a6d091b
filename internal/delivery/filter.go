package delivery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rzbill/killfeed/internal/killmail"
)

// Filter is a compiled CEL predicate over a killmail record. A nil *Filter
// matches everything.
//
// Variables:
//
//	record_id        int     insertion-ordered id
//	killmail_id      int
//	system_id        int
//	region_id        int
//	ship_type_id     int     victim ship
//	total_value      double
//	attacker_count   int
//	npc, solo        bool
//	killmail         dyn     the stored killmail as decoded JSON
//	now_ms           int     evaluation time, unix ms
//
// Example: `total_value > 1e9 && !npc`.
type Filter struct {
	expr string
	prog cel.Program
	now  func() time.Time
}

// FilterOption customizes a compiled filter.
type FilterOption func(*Filter)

// WithFilterClock sets the clock behind now_ms.
func WithFilterClock(now func() time.Time) FilterOption {
	return func(f *Filter) { f.now = now }
}

// CompileFilter compiles expr. An empty expression yields a nil filter.
func CompileFilter(expr string, opts ...FilterOption) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("record_id", cel.IntType),
		cel.Variable("killmail_id", cel.IntType),
		cel.Variable("system_id", cel.IntType),
		cel.Variable("region_id", cel.IntType),
		cel.Variable("ship_type_id", cel.IntType),
		cel.Variable("total_value", cel.DoubleType),
		cel.Variable("attacker_count", cel.IntType),
		cel.Variable("npc", cel.BoolType),
		cel.Variable("solo", cel.BoolType),
		cel.Variable("killmail", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("filter: %w", iss.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter: expression must be boolean, got %s", t)
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	f := &Filter{expr: expr, prog: prog, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against rec. An expression that cannot be
// evaluated for a record (a missing key in killmail, a dyn type mismatch,
// division by zero) does not match it; use has() to test optional fields.
// Only a record that cannot be presented to the expression is an error.
func (f *Filter) Match(rec *killmail.Record) (bool, error) {
	if f == nil {
		return true, nil
	}
	km := &rec.Killmail
	raw, err := json.Marshal(km)
	if err != nil {
		return false, fmt.Errorf("filter: encode record %d: %w", rec.ID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("filter: decode record %d: %w", rec.ID, err)
	}
	out, _, err := f.prog.Eval(map[string]any{
		"record_id":      int64(rec.ID),
		"killmail_id":    km.KillmailID,
		"system_id":      km.SystemID,
		"region_id":      km.RegionID,
		"ship_type_id":   km.Victim.ShipID,
		"total_value":    km.TotalValue,
		"attacker_count": int64(len(km.Attackers)),
		"npc":            km.IsNPC,
		"solo":           km.IsSolo,
		"killmail":       doc,
		"now_ms":         f.now().UnixMilli(),
	})
	if err != nil {
		return false, nil
	}
	b, ok := out.Value().(bool)
	return ok && b, nil
}

// FilterCache memoizes compiled filters by expression. Compile errors are
// not cached.
type FilterCache struct {
	lru *lru.Cache[string, *Filter]
}

// DefaultFilterCacheSize bounds the number of distinct expressions kept.
const DefaultFilterCacheSize = 256

// NewFilterCache returns a cache holding up to size filters.
func NewFilterCache(size int) *FilterCache {
	if size <= 0 {
		size = DefaultFilterCacheSize
	}
	c, err := lru.New[string, *Filter](size)
	if err != nil {
		panic(err)
	}
	return &FilterCache{lru: c}
}

// Compile returns the cached filter for expr, compiling it on first use.
func (c *FilterCache) Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if f, ok := c.lru.Get(expr); ok {
		return f, nil
	}
	f, err := CompileFilter(expr)
	if err != nil {
		return nil, err
	}
	c.lru.Add(expr, f)
	return f, nil
}

// Len reports the number of cached filters.
func (c *FilterCache) Len() int { return c.lru.Len() }
