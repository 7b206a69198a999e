package sandbox

import (
	"time"

	"github.com/dop251/goja"
)

type listener struct {
	value goja.Value
	fn    goja.Callable
	this  goja.Value // set for handleEvent objects
	once  bool
}

// eventTarget holds listeners for one window, document or element.
// Loop-only.
type eventTarget struct {
	listeners map[string][]*listener
	// inline resolves an on<type> content attribute when no handler
	// property is set. Nil for targets without attributes.
	inline func(typ string) goja.Callable
}

func newEventTarget() *eventTarget {
	return &eventTarget{listeners: make(map[string][]*listener)}
}

func (t *eventTarget) add(typ string, l *listener) {
	for _, existing := range t.listeners[typ] {
		if existing.value.SameAs(l.value) {
			return
		}
	}
	t.listeners[typ] = append(t.listeners[typ], l)
}

func (t *eventTarget) remove(typ string, v goja.Value) {
	list := t.listeners[typ]
	for i, l := range list {
		if l.value.SameAs(v) {
			t.listeners[typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (t *eventTarget) snapshot(typ string) []*listener {
	return append([]*listener(nil), t.listeners[typ]...)
}

// eventState is the Go side of a dispatched event object.
type eventState struct {
	obj         *goja.Object
	cancelable  bool
	bubbles     bool
	prevented   bool
	stopped     bool
	stoppedNow  bool
	skipHandler bool // on<type> property is invoked by the caller
}

// newEvent builds an Event-like object whose flags are observable from Go.
func (f *Frame) newEvent(typ string, target goja.Value, bubbles, cancelable bool) *eventState {
	vm := f.vm
	st := &eventState{obj: vm.NewObject(), bubbles: bubbles, cancelable: cancelable}
	o := st.obj
	_ = o.Set("type", typ)
	_ = o.Set("target", target)
	_ = o.Set("currentTarget", target)
	_ = o.Set("bubbles", bubbles)
	_ = o.Set("cancelable", cancelable)
	_ = o.Set("isTrusted", true)
	_ = o.Set("timeStamp", float64(time.Since(f.started).Microseconds())/1000)
	_ = o.DefineAccessorProperty("defaultPrevented", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(st.prevented)
	}), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = o.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		if st.cancelable {
			st.prevented = true
		}
		return goja.Undefined()
	})
	_ = o.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		st.stopped = true
		return goja.Undefined()
	})
	_ = o.Set("stopImmediatePropagation", func(goja.FunctionCall) goja.Value {
		st.stopped = true
		st.stoppedNow = true
		return goja.Undefined()
	})
	return st
}

// bindTarget installs addEventListener, removeEventListener and
// dispatchEvent on obj.
func (f *Frame) bindTarget(obj *goja.Object, t *eventTarget, dispatch func(st *eventState)) {
	vm := f.vm
	_ = obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		v := call.Argument(1)
		l := &listener{value: v}
		if fn, ok := goja.AssertFunction(v); ok {
			l.fn = fn
		} else if o, ok := v.(*goja.Object); ok {
			fn, ok := goja.AssertFunction(o.Get("handleEvent"))
			if !ok {
				return goja.Undefined()
			}
			l.fn, l.this = fn, o
		} else {
			return goja.Undefined()
		}
		if opts, ok := call.Argument(2).(*goja.Object); ok {
			if once := opts.Get("once"); once != nil {
				l.once = once.ToBoolean()
			}
		}
		t.add(typ, l)
		return goja.Undefined()
	})
	_ = obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		t.remove(call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	_ = obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		ev, ok := call.Argument(0).(*goja.Object)
		if !ok {
			panic(vm.NewTypeError("Failed to execute 'dispatchEvent': parameter 1 is not of type 'Event'."))
		}
		typ := ev.Get("type").String()
		bubbles := ev.Get("bubbles")
		st := f.newEvent(typ, obj, bubbles != nil && bubbles.ToBoolean(), true)
		// Copy caller supplied fields such as detail onto the dispatched event.
		for _, k := range ev.Keys() {
			if st.obj.Get(k) == nil {
				_ = st.obj.Set(k, ev.Get(k))
			}
		}
		dispatch(st)
		return vm.ToValue(!st.prevented)
	})
}

// fire invokes the listeners registered on t for the event's type, then
// the matching on<type> handler property of owner.
func (f *Frame) fire(t *eventTarget, owner *goja.Object, st *eventState) {
	typ := st.obj.Get("type").String()
	_ = st.obj.Set("currentTarget", owner)
	for _, l := range t.snapshot(typ) {
		if st.stoppedNow || f.destroyed.Load() {
			return
		}
		if l.once {
			t.remove(typ, l.value)
		}
		this := goja.Value(owner)
		if l.this != nil {
			this = l.this
		}
		f.invoke(l.fn, this, st.obj)
	}
	if st.stoppedNow || st.skipHandler {
		return
	}
	handler, ok := goja.AssertFunction(owner.Get("on" + typ))
	if !ok && t.inline != nil {
		handler = t.inline(typ)
		ok = handler != nil
	}
	if ok {
		res := f.invoke(handler, owner, st.obj)
		if res != nil && res.StrictEquals(f.vm.ToValue(false)) && st.cancelable {
			st.prevented = true
		}
	}
}
