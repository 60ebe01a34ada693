package luavm

import (
	"errors"
	"testing"
	"time"
)

func TestCallFunctionMissingHook(t *testing.T) {
	vm := NewVM()

	err := vm.CallFunction("handle_auth_request", 1, "body")
	if !errors.Is(err, ErrNoFunction) {
		t.Fatalf("got %v, want ErrNoFunction", err)
	}
}

func TestCallFunctionPassesArguments(t *testing.T) {
	vm := NewVM()

	script := `
got_peer = nil
got_body = nil
function handle_auth_request(peer_id, body)
    got_peer = peer_id
    got_body = body
end
`
	if err := vm.LoadString(script); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if err := vm.CallFunction("handle_auth_request", uint32(7), []byte("hello")); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	state := vm.State()
	state.Global("got_peer")
	gotPeer, _ := state.ToInteger(-1)
	state.Pop(1)
	state.Global("got_body")
	gotBody, _ := state.ToString(-1)
	state.Pop(1)

	if gotPeer != 7 {
		t.Fatalf("peer = %d, want 7", gotPeer)
	}
	if gotBody != "hello" {
		t.Fatalf("body = %q, want hello", gotBody)
	}
}

func TestCallFunctionTableArguments(t *testing.T) {
	vm := NewVM()

	script := `
total = 0
vec_x = 0
function on_shoot(peer_id, args)
    total = #args
    vec_x = args[2].x
end
`
	if err := vm.LoadString(script); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	args := []interface{}{
		int64(3),
		map[string]interface{}{"x": 1.5, "y": 0.0, "z": 0.0},
	}
	if err := vm.CallFunction("on_shoot", uint32(1), args); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	state := vm.State()
	state.Global("total")
	total, _ := state.ToInteger(-1)
	state.Pop(1)
	state.Global("vec_x")
	vecX, _ := state.ToNumber(-1)
	state.Pop(1)

	if total != 2 {
		t.Fatalf("args length = %d, want 2", total)
	}
	if vecX != 1.5 {
		t.Fatalf("vec x = %f, want 1.5", vecX)
	}
}

func TestSandboxRemovesDangerousLibraries(t *testing.T) {
	vm := NewVM()

	for _, name := range []string{"io", "os", "debug", "dofile", "loadfile"} {
		vm.State().Global(name)
		if !vm.State().IsNil(-1) {
			t.Errorf("sandboxed global %q still available", name)
		}
		vm.State().Pop(1)
	}
}

func TestScriptError(t *testing.T) {
	vm := NewVM()

	if err := vm.LoadString(`function boom() error("bang") end`); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := vm.CallFunction("boom"); err == nil {
		t.Fatalf("script error not propagated")
	}
}

func TestTimers(t *testing.T) {
	vm := NewVM()

	if err := vm.LoadString(`fired = 0
function tick_cb() fired = fired + 1 end`); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	id := vm.RegisterTimer("tick_cb", 0, false)
	if id <= 0 {
		t.Fatalf("timer id = %d", id)
	}

	time.Sleep(time.Millisecond)
	if err := vm.UpdateTimers(); err != nil {
		t.Fatalf("update timers failed: %v", err)
	}
	if err := vm.UpdateTimers(); err != nil {
		t.Fatalf("update timers failed: %v", err)
	}

	state := vm.State()
	state.Global("fired")
	fired, _ := state.ToInteger(-1)
	state.Pop(1)

	if fired != 1 {
		t.Fatalf("one-shot timer fired %d times", fired)
	}
}

func TestCancelTimer(t *testing.T) {
	vm := NewVM()

	if err := vm.LoadString(`fired = 0
function tick_cb() fired = fired + 1 end`); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	id := vm.RegisterTimer("tick_cb", 0, true)
	vm.CancelTimer(id)

	time.Sleep(time.Millisecond)
	if err := vm.UpdateTimers(); err != nil {
		t.Fatalf("update timers failed: %v", err)
	}

	state := vm.State()
	state.Global("fired")
	fired, _ := state.ToInteger(-1)
	state.Pop(1)

	if fired != 0 {
		t.Fatalf("cancelled timer fired %d times", fired)
	}
}
