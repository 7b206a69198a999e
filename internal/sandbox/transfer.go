package sandbox

import (
	"bytes"
	"math"
	"reflect"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

const circular = "[Circular]"

// encoder serializes values crossing the frame boundary into JSON. It
// follows JSON.stringify with a few relaxations so a message never fails
// for shapes the console commonly sees: cycles, functions, errors and
// non-finite numbers all have a textual form. Property getters run and may
// throw, which propagates to the posting script.
type encoder struct {
	vm        *goja.Runtime
	builtins  builtins
	maxDepth  int
	reject    func(*goja.Object) *goja.Object // returns the error to throw for uncloneable objects
	ancestors []*goja.Object
	buf       bytes.Buffer
}

// builtins are the intrinsics the encoder relies on, captured before user
// code can replace them.
type builtins struct {
	arrayFrom goja.Callable
	toString  goja.Callable // the String function
	mapCtor   *goja.Object
	setCtor   *goja.Object
}

func captureBuiltins(vm *goja.Runtime) (builtins, error) {
	var b builtins
	array := vm.Get("Array")
	if array == nil {
		return b, &missingIntrinsicError{name: "Array"}
	}
	var ok bool
	if b.arrayFrom, ok = goja.AssertFunction(array.ToObject(vm).Get("from")); !ok {
		return b, &missingIntrinsicError{name: "Array.from"}
	}
	if b.toString, ok = goja.AssertFunction(vm.Get("String")); !ok {
		return b, &missingIntrinsicError{name: "String"}
	}
	for name, dst := range map[string]**goja.Object{"Map": &b.mapCtor, "Set": &b.setCtor} {
		v := vm.Get(name)
		if v == nil || goja.IsUndefined(v) {
			return b, &missingIntrinsicError{name: name}
		}
		*dst = v.ToObject(vm)
	}
	return b, nil
}

func newEncoder(vm *goja.Runtime, b builtins, maxDepth int) *encoder {
	return &encoder{vm: vm, builtins: b, maxDepth: maxDepth}
}

// Encode returns the JSON form of v.
func (e *encoder) Encode(v goja.Value) []byte {
	e.buf.Reset()
	e.ancestors = e.ancestors[:0]
	e.value(v)
	return bytes.Clone(e.buf.Bytes())
}

// omittable reports whether v disappears as an object property.
func omittable(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) {
		return true
	}
	switch o := v.(type) {
	case *goja.Symbol:
		return true
	case *goja.Object:
		_, fn := goja.AssertFunction(o)
		return fn
	}
	return false
}

func (e *encoder) value(v goja.Value) {
	if v == nil || goja.IsUndefined(v) {
		e.str("undefined")
		return
	}
	if goja.IsNull(v) {
		e.buf.WriteString("null")
		return
	}

	switch x := v.(type) {
	case *goja.Symbol:
		e.str(e.builtins.symbol(x))
		return
	case *goja.Object:
		e.object(x)
		return
	}

	switch v.ExportType().Kind() {
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(v.ToBoolean()))
	case reflect.Int64:
		e.buf.WriteString(v.String())
	case reflect.Float64:
		f := v.ToFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			e.str(v.String())
			return
		}
		e.buf.WriteString(v.String())
	default:
		e.str(v.String())
	}
}

func (e *encoder) object(o *goja.Object) {
	if _, ok := goja.AssertFunction(o); ok {
		e.str(o.String())
		return
	}
	if e.reject != nil {
		if exc := e.reject(o); exc != nil {
			panic(exc)
		}
	}
	for _, a := range e.ancestors {
		if a.SameAs(o) {
			e.str(circular)
			return
		}
	}

	switch o.ClassName() {
	case "Error":
		if stack := o.Get("stack"); stack != nil && !goja.IsUndefined(stack) && stack.String() != "" {
			e.str(stack.String())
		} else {
			e.str(o.String())
		}
		return
	case "RegExp":
		e.str(o.String())
		return
	case "String", "Number", "Boolean":
		if valueOf, ok := goja.AssertFunction(o.Get("valueOf")); ok {
			res, err := valueOf(o)
			if err != nil {
				panic(err)
			}
			e.value(res)
			return
		}
	}

	if toJSON, ok := goja.AssertFunction(o.Get("toJSON")); ok {
		res, err := toJSON(o, e.vm.ToValue(""))
		if err != nil {
			panic(err)
		}
		e.value(res)
		return
	}

	if len(e.ancestors) >= e.maxDepth {
		if o.ClassName() == "Array" {
			e.str("[Array]")
		} else {
			e.str("[Object]")
		}
		return
	}

	e.ancestors = append(e.ancestors, o)
	defer func() { e.ancestors = e.ancestors[:len(e.ancestors)-1] }()

	switch {
	case o.ClassName() == "Array":
		e.array(o)
	case e.vm.InstanceOf(o, e.builtins.setCtor):
		e.array(e.entries(o))
	case e.vm.InstanceOf(o, e.builtins.mapCtor):
		e.mapEntries(e.entries(o))
	default:
		e.properties(o)
	}
}

func (e *encoder) array(o *goja.Object) {
	n := o.Get("length").ToInteger()
	e.buf.WriteByte('[')
	for i := int64(0); i < n; i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.value(o.Get(strconv.FormatInt(i, 10)))
	}
	e.buf.WriteByte(']')
}

func (e *encoder) properties(o *goja.Object) {
	e.buf.WriteByte('{')
	first := true
	for _, key := range o.Keys() {
		v := o.Get(key)
		if omittable(v) {
			continue
		}
		if !first {
			e.buf.WriteByte(',')
		}
		first = false
		e.str(key)
		e.buf.WriteByte(':')
		e.value(v)
	}
	e.buf.WriteByte('}')
}

// mapEntries writes [key, value] pairs as an object keyed by String(key).
func (e *encoder) mapEntries(pairs *goja.Object) {
	n := pairs.Get("length").ToInteger()
	e.buf.WriteByte('{')
	first := true
	for i := int64(0); i < n; i++ {
		pair := pairs.Get(strconv.FormatInt(i, 10)).ToObject(e.vm)
		v := pair.Get("1")
		if omittable(v) {
			continue
		}
		if !first {
			e.buf.WriteByte(',')
		}
		first = false
		e.str(pair.Get("0").String())
		e.buf.WriteByte(':')
		e.value(v)
	}
	e.buf.WriteByte('}')
}

func (e *encoder) entries(o *goja.Object) *goja.Object {
	res, err := e.builtins.arrayFrom(goja.Undefined(), o)
	if err != nil {
		panic(err)
	}
	return res.ToObject(e.vm)
}

// symbol renders a symbol the way String(sym) does, e.g. "Symbol(s)".
func (b builtins) symbol(sym *goja.Symbol) string {
	if res, err := b.toString(goja.Undefined(), sym); err == nil {
		return res.String()
	}
	return "Symbol(" + sym.String() + ")"
}

func (e *encoder) str(s string) {
	b, err := sonic.Marshal(s)
	if err != nil {
		e.buf.WriteString(strconv.Quote(s))
		return
	}
	e.buf.Write(b)
}
