package luavm

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Shopify/go-lua"
)

// ErrNoFunction means the named Lua global is absent or not a function.
// Hook call sites tolerate it; scripts implement only the hooks they need.
var ErrNoFunction = errors.New("lua global is not a function")

type VM struct {
	state     *lua.State
	timers    map[int]*Timer
	timerID   int
	timerLock sync.Mutex
}

type Timer struct {
	ID       int
	Callback string
	Interval time.Duration
	Repeat   bool
	NextRun  time.Time
	Args     []interface{}
}

func NewVM() *VM {
	state := lua.NewState()
	openSafeLibraries(state)
	return &VM{
		state:  state,
		timers: make(map[int]*Timer),
	}
}

func openSafeLibraries(state *lua.State) {
	lua.OpenLibraries(state)

	state.PushNil()
	state.SetGlobal("io")

	state.PushNil()
	state.SetGlobal("os")

	state.PushNil()
	state.SetGlobal("debug")

	state.PushNil()
	state.SetGlobal("dofile")

	state.PushNil()
	state.SetGlobal("loadfile")
}

func (vm *VM) LoadFile(path string) error {
	if err := lua.DoFile(vm.state, path); err != nil {
		return fmt.Errorf("failed to load lua file %s: %w", path, err)
	}
	return nil
}

func (vm *VM) LoadString(code string) error {
	if err := lua.DoString(vm.state, code); err != nil {
		return fmt.Errorf("failed to load lua string: %w", err)
	}
	return nil
}

func (vm *VM) Close() {
	vm.timerLock.Lock()
	vm.timers = make(map[int]*Timer)
	vm.timerLock.Unlock()
}

func (vm *VM) RegisterTimer(callback string, interval time.Duration, repeat bool, args ...interface{}) int {
	vm.timerLock.Lock()
	defer vm.timerLock.Unlock()

	vm.timerID++
	timer := &Timer{
		ID:       vm.timerID,
		Callback: callback,
		Interval: interval,
		Repeat:   repeat,
		NextRun:  time.Now().Add(interval),
		Args:     args,
	}

	vm.timers[timer.ID] = timer
	return timer.ID
}

func (vm *VM) CancelTimer(id int) {
	vm.timerLock.Lock()
	defer vm.timerLock.Unlock()

	delete(vm.timers, id)
}

// UpdateTimers fires due timers. Called once per tick on the sim thread.
func (vm *VM) UpdateTimers() error {
	vm.timerLock.Lock()
	now := time.Now()
	var toExecute []*Timer
	var toRemove []int

	for _, timer := range vm.timers {
		if now.After(timer.NextRun) || now.Equal(timer.NextRun) {
			toExecute = append(toExecute, timer)
			if timer.Repeat {
				timer.NextRun = now.Add(timer.Interval)
			} else {
				toRemove = append(toRemove, timer.ID)
			}
		}
	}

	for _, id := range toRemove {
		delete(vm.timers, id)
	}
	vm.timerLock.Unlock()

	for _, timer := range toExecute {
		if err := vm.CallFunction(timer.Callback, timer.Args...); err != nil && !errors.Is(err, ErrNoFunction) {
			return err
		}
	}

	return nil
}

func (vm *VM) pushArg(arg interface{}) error {
	switch v := arg.(type) {
	case nil:
		vm.state.PushNil()
	case string:
		vm.state.PushString(v)
	case []byte:
		vm.state.PushString(string(v))
	case int:
		vm.state.PushInteger(v)
	case uint32:
		vm.state.PushInteger(int(v))
	case uint64:
		vm.state.PushInteger(int(v))
	case int64:
		vm.state.PushInteger(int(v))
	case float32:
		vm.state.PushNumber(float64(v))
	case float64:
		vm.state.PushNumber(v)
	case bool:
		vm.state.PushBoolean(v)
	case map[string]interface{}:
		vm.state.NewTable()
		for key, val := range v {
			if err := vm.pushArg(val); err != nil {
				return err
			}
			vm.state.SetField(-2, key)
		}
	case []interface{}:
		vm.state.NewTable()
		for i, val := range v {
			if err := vm.pushArg(val); err != nil {
				return err
			}
			vm.state.RawSetInt(-2, i+1)
		}
	default:
		return fmt.Errorf("unsupported argument type: %T", arg)
	}
	return nil
}

func (vm *VM) CallFunction(name string, args ...interface{}) error {
	vm.state.Global(name)
	if !vm.state.IsFunction(-1) {
		vm.state.Pop(1)
		return fmt.Errorf("%w: %s", ErrNoFunction, name)
	}

	for i, arg := range args {
		if err := vm.pushArg(arg); err != nil {
			vm.state.Pop(1 + i)
			return err
		}
	}

	if err := vm.state.ProtectedCall(len(args), 0, 0); err != nil {
		return vm.enhanceError(fmt.Sprintf("function %s", name), err)
	}

	return nil
}

func (vm *VM) enhanceError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[Lua Error] %s: %w", context, err)
}

func (vm *VM) HasFunction(name string) bool {
	vm.state.Global(name)
	isFunc := vm.state.IsFunction(-1)
	vm.state.Pop(1)
	return isFunc
}

func (vm *VM) RegisterFunction(name string, fn lua.Function) {
	vm.state.Register(name, fn)
}

func (vm *VM) State() *lua.State {
	return vm.state
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
