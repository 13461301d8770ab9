package stages

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/flarebyte/seshat-archive/internal/export"
)

const (
	luaTimeout      = 250 * time.Millisecond
	luaRegistrySize = 256
	luaRegistryMax  = 4096
)

// luaPredicate evaluates a user-supplied inclusion expression against
// discovered documents. The script sees the globals kind, conversation and
// relPath and must yield a truthy value to keep the document. Scripts run
// in a sandbox: base/string/table/math only, deterministic math.random,
// and a hard timeout.
type luaPredicate struct {
	code string
}

// newLuaPredicate wraps an expression without an explicit return.
func newLuaPredicate(code string) *luaPredicate {
	if !strings.Contains(code, "return") {
		code = "return (" + code + ")"
	}
	return &luaPredicate{code: code}
}

// Keep reports whether the document passes the predicate.
func (p *luaPredicate) Keep(doc export.Document) (bool, error) {
	L := newSandboxState(doc.RelPath)
	defer L.Close()

	ctx, cancel := context.WithTimeout(context.Background(), luaTimeout)
	defer cancel()
	L.SetContext(ctx)

	L.SetGlobal("kind", lua.LString(string(doc.Kind)))
	L.SetGlobal("conversation", lua.LString(doc.Conversation))
	L.SetGlobal("relPath", lua.LString(doc.RelPath))

	fn, err := L.LoadString(p.code)
	if err != nil {
		return false, fmt.Errorf("filter predicate: %w", err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		if isLuaTimeout(err) {
			return false, fmt.Errorf("filter predicate: sandbox timeout")
		}
		return false, fmt.Errorf("filter predicate: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func newSandboxState(seedKey string) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:     true,
		RegistrySize:     luaRegistrySize,
		RegistryMaxSize:  luaRegistryMax,
		RegistryGrowStep: 0,
	})
	openLib := func(name string, f lua.LGFunction) {
		L.Push(L.NewFunction(f))
		L.Push(lua.LString(name))
		L.Call(1, 0)
	}
	openLib("base", lua.OpenBase)
	openLib("string", lua.OpenString)
	openLib("table", lua.OpenTable)
	openLib("math", lua.OpenMath)
	installDeterministicRandom(L, deterministicSeed(seedKey))
	return L
}

func deterministicSeed(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

func installDeterministicRandom(L *lua.LState, seed int64) {
	mathTbl, ok := L.GetGlobal("math").(*lua.LTable)
	if !ok || mathTbl == nil {
		return
	}
	rng := rand.New(rand.NewSource(seed))
	mathTbl.RawSetString("random", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		switch top {
		case 0:
			L.Push(lua.LNumber(rng.Float64()))
			return 1
		case 1:
			max := L.CheckInt(1)
			if max < 1 {
				L.ArgError(1, "interval is empty")
				return 0
			}
			L.Push(lua.LNumber(rng.Intn(max) + 1))
			return 1
		default:
			min := L.CheckInt(1)
			max := L.CheckInt(2)
			if max < min {
				L.ArgError(2, "interval is empty")
				return 0
			}
			L.Push(lua.LNumber(rng.Intn(max-min+1) + min))
			return 1
		}
	}))
	mathTbl.RawSetString("randomseed", L.NewFunction(func(L *lua.LState) int {
		return 0
	}))
}

func isLuaTimeout(err error) bool {
	if err == nil {
		return false
	}
	if err == context.DeadlineExceeded {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "deadline") || strings.Contains(lower, "context canceled")
}
