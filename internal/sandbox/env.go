package sandbox

import (
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/host"
)

const (
	maxCallStackSize = 1024
	minInterval      = time.Millisecond
	frameInterval    = 16 * time.Millisecond
	userAgent        = "Mozilla/5.0 (livecode headless frame)"
)

// denied are globals the loop environment provides that a browser frame
// does not have.
var denied = []string{"require", "process", "module", "exports", "__filename", "__dirname", "Buffer", "global"}

// install builds the window environment. Runs on the loop.
func (f *Frame) install(vm *goja.Runtime, doc string) error {
	vm.SetMaxCallStackSize(maxCallStackSize)
	vm.SetPromiseRejectionTracker(f.trackRejection)

	global := vm.GlobalObject()
	f.global = global
	for _, name := range denied {
		_ = global.Delete(name)
	}

	if err := f.captureIntrinsics(); err != nil {
		return err
	}

	f.window = newEventTarget()
	for _, name := range []string{"window", "self", "frames"} {
		_ = global.Set(name, global)
	}
	_ = global.Set("origin", Origin)
	_ = global.Set("isSecureContext", false)
	_ = global.Set("opener", goja.Null())
	_ = global.Set("frameElement", goja.Null())
	_ = global.Set("name", "")

	parent := vm.NewObject()
	_ = parent.Set("postMessage", f.postToParent)
	_ = global.Set("parent", parent)
	_ = global.Set("top", parent)

	_ = global.Set("postMessage", f.postToSelf)
	_ = global.Set("console", f.nativeConsole())
	_ = global.Set("location", f.location())
	_ = global.Set("navigator", f.navigator())
	_ = global.Set("performance", f.performance())
	_ = global.Set("open", func(call goja.FunctionCall) goja.Value {
		panic(f.securityError("Blocked opening '" + call.Argument(0).String() +
			"' in a new window because the request was made in a sandboxed frame whose 'allow-popups' permission is not set."))
	})
	_ = global.Set("alert", f.blockedDialog("alert"))
	_ = global.Set("confirm", f.blockedDialog("confirm"))
	_ = global.Set("prompt", f.blockedDialog("prompt"))
	for _, name := range []string{"localStorage", "sessionStorage", "indexedDB"} {
		f.deniedAccessor(global, name, "Failed to read the '"+name+"' property from 'Window': The document is sandboxed and lacks the 'allow-same-origin' flag.")
	}

	f.installTimers(global)
	f.bindTarget(global, f.window, func(st *eventState) { f.fire(f.window, global, st) })

	document, err := newDocument(f, doc)
	if err != nil {
		return err
	}
	f.document = document
	_ = global.Set("document", document.obj)
	return nil
}

// captureIntrinsics keeps references to builtins before user code can
// replace them.
func (f *Frame) captureIntrinsics() error {
	var err error
	if f.builtins, err = captureBuiltins(f.vm); err != nil {
		return err
	}
	if f.jsonParse, err = f.intrinsic("JSON", "parse"); err != nil {
		return err
	}
	if f.promiseResolve, err = f.intrinsic("Promise", "resolve"); err != nil {
		return err
	}
	f.promiseCtor = f.global.Get("Promise")
	return nil
}

func (f *Frame) intrinsic(object, method string) (goja.Callable, error) {
	obj := f.global.Get(object)
	if obj == nil {
		return nil, &missingIntrinsicError{name: object}
	}
	fn, ok := goja.AssertFunction(obj.ToObject(f.vm).Get(method))
	if !ok {
		return nil, &missingIntrinsicError{name: object + "." + method}
	}
	return fn, nil
}

type missingIntrinsicError struct{ name string }

func (e *missingIntrinsicError) Error() string { return "missing intrinsic " + e.name }

// securityError returns an Error named SecurityError for throwing.
func (f *Frame) securityError(message string) *goja.Object {
	return f.namedError("SecurityError", message)
}

func (f *Frame) namedError(name, message string) *goja.Object {
	ctor, ok := goja.AssertConstructor(f.global.Get("Error"))
	if !ok {
		return f.vm.NewTypeError(message)
	}
	obj, err := ctor(nil, f.vm.ToValue(message))
	if err != nil {
		return f.vm.NewTypeError(message)
	}
	_ = obj.Set("name", name)
	return obj
}

func (f *Frame) deniedAccessor(obj *goja.Object, name, message string) {
	getter := f.vm.ToValue(func(goja.FunctionCall) goja.Value {
		panic(f.securityError(message))
	})
	_ = obj.DefineAccessorProperty(name, getter, nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (f *Frame) blockedDialog(name string) func(goja.FunctionCall) goja.Value {
	return func(goja.FunctionCall) goja.Value {
		f.logger.Warn("Ignored call to '" + name + "()'. The document is sandboxed, and the 'allow-modals' keyword is not set.")
		if name == "prompt" {
			return goja.Null()
		}
		if name == "confirm" {
			return f.vm.ToValue(false)
		}
		return goja.Undefined()
	}
}

func (f *Frame) encoder() *encoder {
	e := newEncoder(f.vm, f.builtins, f.cfg.MaxDepth)
	e.reject = f.uncloneable
	return e
}

// uncloneable rejects the window and DOM wrappers, which a structured
// clone cannot copy.
func (f *Frame) uncloneable(o *goja.Object) *goja.Object {
	opaque := o.SameAs(f.global)
	if !opaque && f.document != nil {
		opaque = o.SameAs(f.document.obj) || f.document.objects[o] != nil
	}
	if !opaque {
		return nil
	}
	return f.namedError("DataCloneError", "Failed to execute 'postMessage' on 'Window': "+f.stringOf(o)+" could not be cloned.")
}

// postToParent implements window.parent.postMessage.
func (f *Frame) postToParent(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		panic(f.vm.NewTypeError("Failed to execute 'postMessage' on 'Window': 1 argument required, but only 0 present."))
	}
	data := f.encoder().Encode(call.Argument(0))

	targetOrigin := "*"
	if arg := call.Argument(1); !goja.IsUndefined(arg) {
		if o, ok := arg.(*goja.Object); ok && o.ClassName() == "Object" {
			if v := o.Get("targetOrigin"); v != nil && !goja.IsUndefined(v) {
				targetOrigin = v.String()
			}
		} else {
			targetOrigin = arg.String()
		}
	}
	if !f.originAllowed(targetOrigin) {
		return goja.Undefined()
	}
	f.target.PostMessage(host.Message{Data: data, Origin: Origin, Generation: f.generation})
	return goja.Undefined()
}

func (f *Frame) originAllowed(target string) bool {
	return target == "*" || f.cfg.HostOrigin == "" || target == f.cfg.HostOrigin
}

// postToSelf implements window.postMessage: a message event on this
// window in a later task.
func (f *Frame) postToSelf(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		panic(f.vm.NewTypeError("Failed to execute 'postMessage' on 'Window': 1 argument required, but only 0 present."))
	}
	data := f.encoder().Encode(call.Argument(0))
	f.loop.RunOnLoop(func(vm *goja.Runtime) {
		f.task(func() error {
			value, err := f.jsonParse(goja.Undefined(), vm.ToValue(string(data)))
			if err != nil {
				return err
			}
			st := f.newEvent("message", f.global, false, false)
			_ = st.obj.Set("data", value)
			_ = st.obj.Set("origin", Origin)
			_ = st.obj.Set("source", f.global)
			f.fire(f.window, f.global, st)
			return nil
		})
	})
	return goja.Undefined()
}

// nativeConsole is the console the frame starts with. Output goes to the
// service log.
func (f *Frame) nativeConsole() *goja.Object {
	console := f.vm.NewObject()
	levels := map[string]func(string, ...zap.Field){
		"log":   f.logger.Info,
		"info":  f.logger.Info,
		"debug": f.logger.Debug,
		"trace": f.logger.Debug,
		"dir":   f.logger.Info,
		"table": f.logger.Info,
		"warn":  f.logger.Warn,
		"error": f.logger.Warn,
	}
	for name, write := range levels {
		_ = console.Set(name, func(call goja.FunctionCall) goja.Value {
			write(f.formatArgs(call.Arguments), zap.String("console", name))
			return goja.Undefined()
		})
	}
	for _, name := range []string{"group", "groupCollapsed", "groupEnd", "time", "timeEnd", "count", "clear", "assert"} {
		_ = console.Set(name, func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	}
	return console
}

// formatArgs renders console arguments the way the bridge flattens them.
func (f *Frame) formatArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if _, ok := arg.(*goja.Object); !ok {
			parts = append(parts, f.stringOf(arg))
			continue
		}
		var encoded []byte
		if ex := f.vm.Try(func() {
			encoded = f.encoder().Encode(arg)
		}); ex != nil {
			parts = append(parts, f.stringOf(arg))
			continue
		}
		parts = append(parts, string(encoded))
	}
	return strings.Join(parts, " ")
}

func (f *Frame) location() *goja.Object {
	vm := f.vm
	loc := vm.NewObject()
	hash := ""
	navigate := func(call goja.FunctionCall) goja.Value {
		panic(f.securityError("Blocked navigation to '" + call.Argument(0).String() + "' from a sandboxed frame."))
	}
	_ = loc.DefineAccessorProperty("href", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(SourceName + hash)
	}), vm.ToValue(navigate), goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = loc.DefineAccessorProperty("hash", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(hash)
	}), vm.ToValue(func(call goja.FunctionCall) goja.Value {
		hash = call.Argument(0).String()
		if hash != "" && !strings.HasPrefix(hash, "#") {
			hash = "#" + hash
		}
		return goja.Undefined()
	}), goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = loc.Set("protocol", "about:")
	_ = loc.Set("host", "")
	_ = loc.Set("hostname", "")
	_ = loc.Set("port", "")
	_ = loc.Set("pathname", "srcdoc")
	_ = loc.Set("search", "")
	_ = loc.Set("origin", Origin)
	_ = loc.Set("assign", navigate)
	_ = loc.Set("replace", navigate)
	_ = loc.Set("reload", func(goja.FunctionCall) goja.Value {
		panic(f.securityError("Blocked reload of a sandboxed frame."))
	})
	_ = loc.Set("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(SourceName + hash)
	})
	return loc
}

func (f *Frame) navigator() *goja.Object {
	nav := f.vm.NewObject()
	_ = nav.Set("userAgent", userAgent)
	_ = nav.Set("language", "en-US")
	_ = nav.Set("languages", []any{"en-US", "en"})
	_ = nav.Set("onLine", false)
	_ = nav.Set("cookieEnabled", false)
	return nav
}

func (f *Frame) performance() *goja.Object {
	perf := f.vm.NewObject()
	_ = perf.Set("now", func(goja.FunctionCall) goja.Value {
		return f.vm.ToValue(float64(time.Since(f.started).Microseconds()) / 1000)
	})
	_ = perf.Set("timeOrigin", float64(f.started.UnixMicro())/1000)
	return perf
}

// installTimers replaces the loop's timers with ones that run each
// callback as a task, so errors reach the window's error listeners.
func (f *Frame) installTimers(global *goja.Object) {
	_ = global.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return f.setTimer(call, false)
	})
	_ = global.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return f.setTimer(call, true)
	})
	_ = global.Set("clearTimeout", f.clearTimer)
	_ = global.Set("clearInterval", f.clearTimer)
	_ = global.Set("queueMicrotask", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(f.vm.NewTypeError("Failed to execute 'queueMicrotask' on 'Window': parameter 1 is not of type 'Function'."))
		}
		resolved, err := f.promiseResolve(f.promiseCtor, goja.Undefined())
		if err != nil {
			panic(err)
		}
		then, _ := goja.AssertFunction(resolved.ToObject(f.vm).Get("then"))
		if _, err := then(resolved, f.vm.ToValue(func(goja.FunctionCall) goja.Value {
			if _, err := fn(goja.Undefined()); err != nil {
				f.report(err)
			}
			return goja.Undefined()
		})); err != nil {
			panic(err)
		}
		return goja.Undefined()
	})
	_ = global.Set("requestAnimationFrame", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(f.vm.NewTypeError("Failed to execute 'requestAnimationFrame' on 'Window': The callback provided as parameter 1 is not a function."))
		}
		return f.schedule(func() error {
			_, err := fn(goja.Undefined(), f.vm.ToValue(float64(time.Since(f.started).Microseconds())/1000))
			return err
		}, frameInterval, false)
	})
	_ = global.Set("cancelAnimationFrame", f.clearTimer)
}

func (f *Frame) setTimer(call goja.FunctionCall, repeat bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		// String handlers would need eval; treat them as no-ops.
		return f.schedule(nil, 0, false)
	}
	delay := time.Duration(max(call.Argument(1).ToInteger(), 0)) * time.Millisecond
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}
	return f.schedule(func() error {
		_, err := fn(f.global, args...)
		return err
	}, delay, repeat)
}

// schedule registers a timer and returns its id. A nil run reserves an id
// without scheduling anything.
func (f *Frame) schedule(run func() error, delay time.Duration, repeat bool) goja.Value {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()
	f.nextTimer++
	tid := f.nextTimer
	if run == nil || f.timers == nil {
		return f.vm.ToValue(tid)
	}
	if repeat {
		f.timers[tid] = f.loop.SetInterval(func(*goja.Runtime) {
			f.task(run)
		}, max(delay, minInterval))
	} else {
		f.timers[tid] = f.loop.SetTimeout(func(*goja.Runtime) {
			f.forgetTimer(tid)
			f.task(run)
		}, delay)
	}
	return f.vm.ToValue(tid)
}

func (f *Frame) clearTimer(call goja.FunctionCall) goja.Value {
	tid := call.Argument(0).ToInteger()
	f.timerMu.Lock()
	t, ok := f.timers[tid]
	delete(f.timers, tid)
	f.timerMu.Unlock()
	if ok {
		f.cancelTimer(t)
	}
	return goja.Undefined()
}

func (f *Frame) forgetTimer(tid int64) {
	f.timerMu.Lock()
	delete(f.timers, tid)
	f.timerMu.Unlock()
}

func (f *Frame) cancelTimer(t any) {
	switch t := t.(type) {
	case *eventloop.Timer:
		f.loop.ClearTimeout(t)
	case *eventloop.Interval:
		f.loop.ClearInterval(t)
	}
}

// PendingTimers returns the number of scheduled timers and intervals.
func (f *Frame) PendingTimers() int {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()
	return len(f.timers)
}
