// Package scripting embeds a Lua interpreter for the combat formulas.
// Damage math lives in scripts so balance changes do not need a rebuild;
// the Go side passes plain tables in and expects an integer back.
package scripting

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Function names the combat script must define.
var requiredFuncs = []string{
	"calc_player_attack",
	"calc_npc_attack",
	"calc_spell_damage",
}

// Engine wraps one Lua state. Calls are serialized: lua.LState is not
// goroutine-safe and formula evaluation is microseconds.
type Engine struct {
	mu sync.Mutex
	l  *lua.LState
}

// New loads the combat script and verifies the required functions exist.
// A missing or broken script is a fatal boot error.
func New(scriptPath string) (*Engine, error) {
	l := lua.NewState()
	if err := l.DoFile(scriptPath); err != nil {
		l.Close()
		return nil, fmt.Errorf("load combat script %s: %w", scriptPath, err)
	}
	for _, name := range requiredFuncs {
		if _, ok := l.GetGlobal(name).(*lua.LFunction); !ok {
			l.Close()
			return nil, fmt.Errorf("combat script %s: missing function %q", scriptPath, name)
		}
	}
	return &Engine{l: l}, nil
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.l.Close()
}

// CombatantStats is the attacker or defender side of a formula call.
type CombatantStats struct {
	Level    int
	Strength int
	Agility  int
	MinHit   int
	MaxHit   int
	Defense  int
}

// SpellStats feeds the spell damage formula.
type SpellStats struct {
	MinDamage   int
	MaxDamage   int
	CasterLevel int
	CasterInt   int
}

// CalcPlayerAttack computes melee damage of a player hitting something.
func (e *Engine) CalcPlayerAttack(attacker, defender CombatantStats) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.call("calc_player_attack", combatantTable(e.l, attacker), combatantTable(e.l, defender))
}

// CalcNpcAttack computes melee damage of an NPC hitting a player.
func (e *Engine) CalcNpcAttack(attacker, defender CombatantStats) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.call("calc_npc_attack", combatantTable(e.l, attacker), combatantTable(e.l, defender))
}

// CalcSpellDamage computes the damage (or heal amount) of a cast.
func (e *Engine) CalcSpellDamage(sp SpellStats) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.l.NewTable()
	t.RawSetString("min_damage", lua.LNumber(sp.MinDamage))
	t.RawSetString("max_damage", lua.LNumber(sp.MaxDamage))
	t.RawSetString("caster_level", lua.LNumber(sp.CasterLevel))
	t.RawSetString("caster_int", lua.LNumber(sp.CasterInt))
	return e.call("calc_spell_damage", t)
}

// call invokes a script function; e.mu must be held.
func (e *Engine) call(fn string, args ...lua.LValue) (int, error) {
	if err := e.l.CallByParam(lua.P{
		Fn:      e.l.GetGlobal(fn),
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return 0, fmt.Errorf("combat script %s: %w", fn, err)
	}
	ret := e.l.Get(-1)
	e.l.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("combat script %s: returned %s, want number", fn, ret.Type())
	}
	dmg := int(n)
	if dmg < 0 {
		dmg = 0
	}
	return dmg, nil
}

func combatantTable(l *lua.LState, c CombatantStats) *lua.LTable {
	t := l.NewTable()
	t.RawSetString("level", lua.LNumber(c.Level))
	t.RawSetString("strength", lua.LNumber(c.Strength))
	t.RawSetString("agility", lua.LNumber(c.Agility))
	t.RawSetString("min_hit", lua.LNumber(c.MinHit))
	t.RawSetString("max_hit", lua.LNumber(c.MaxHit))
	t.RawSetString("defense", lua.LNumber(c.Defense))
	return t
}
