package sandbox

import (
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// domDocument is the frame's document. The tree is the parsed document
// itself; JS objects are created lazily per node and cached so identity
// holds across lookups. Loop-only.
type domDocument struct {
	f          *Frame
	doc        *goquery.Document
	obj        *goja.Object
	target     *eventTarget
	nodes      map[*html.Node]*domNode
	objects    map[*goja.Object]*domNode
	readyState string
}

// domNode binds one html node to its JS wrapper.
type domNode struct {
	node   *html.Node
	obj    *goja.Object
	target *eventTarget
}

func newDocument(f *Frame, src string) (*domDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	d := &domDocument{
		f:          f,
		doc:        doc,
		target:     newEventTarget(),
		nodes:      make(map[*html.Node]*domNode),
		objects:    make(map[*goja.Object]*domNode),
		readyState: "loading",
	}
	d.obj = d.newDocumentObject()
	return d, nil
}

func (d *domDocument) root() *html.Node {
	return d.doc.Nodes[0]
}

func (d *domDocument) vm() *goja.Runtime {
	return d.f.vm
}

// selection wraps a node, attached or not, for goquery traversal.
func selection(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

func (d *domDocument) accessor(o *goja.Object, name string, get func() any, set func(goja.Value)) {
	vm := d.vm()
	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(get())
	})
	var setter goja.Value
	if set != nil {
		setter = vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = o.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// hidden installs a non-enumerable method returning a fixed string.
func (d *domDocument) hidden(o *goja.Object, name, result string) {
	fn := d.vm().ToValue(func(goja.FunctionCall) goja.Value { return d.vm().ToValue(result) })
	_ = o.DefineDataProperty(name, fn, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// wrap returns the JS object for n, creating it on first use.
func (d *domDocument) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if n.Type == html.DocumentNode {
		return d.obj
	}
	if w, ok := d.nodes[n]; ok {
		return w.obj
	}
	w := &domNode{node: n, target: newEventTarget()}
	d.nodes[n] = w
	switch n.Type {
	case html.ElementNode:
		w.obj = d.newElement(w)
		w.target.inline = d.inlineHandler(n)
	default:
		w.obj = d.newCharacterData(w)
	}
	d.objects[w.obj] = w
	return w.obj
}

func (d *domDocument) wrapAll(nodes []*html.Node) *goja.Object {
	items := make([]any, len(nodes))
	for i, n := range nodes {
		items[i] = d.wrap(n)
	}
	return d.vm().NewArray(items...)
}

// unwrap returns the node behind a wrapper, or nil for other values.
func (d *domDocument) unwrap(v goja.Value) *domNode {
	o, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return d.objects[o]
}

// node converts an append argument, creating text nodes for non-nodes.
func (d *domDocument) node(method string, v goja.Value) *html.Node {
	if w := d.unwrap(v); w != nil {
		return w.node
	}
	if _, ok := v.(*goja.Object); ok && method == "appendChild" {
		panic(d.vm().NewTypeError("Failed to execute 'appendChild' on 'Node': parameter 1 is not of type 'Node'."))
	}
	return &html.Node{Type: html.TextNode, Data: v.String()}
}

func (d *domDocument) compile(method, owner, selector string) cascadia.Selector {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		panic(d.f.namedError("SyntaxError",
			fmt.Sprintf("Failed to execute '%s' on '%s': '%s' is not a valid selector.", method, owner, selector)))
	}
	return sel
}

// bindQueries installs the selector and collection lookups scoped to n.
func (d *domDocument) bindQueries(o *goja.Object, n *html.Node, owner string) {
	_ = o.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		m := d.compile("querySelector", owner, call.Argument(0).String())
		found := selection(n).FindMatcher(m)
		if found.Length() == 0 {
			return goja.Null()
		}
		return d.wrap(found.Get(0))
	})
	_ = o.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		m := d.compile("querySelectorAll", owner, call.Argument(0).String())
		return d.wrapAll(selection(n).FindMatcher(m).Nodes)
	})
	_ = o.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		classes := strings.Fields(call.Argument(0).String())
		if len(classes) == 0 {
			return d.wrapAll(nil)
		}
		found := selection(n).Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			for _, c := range classes {
				if !s.HasClass(c) {
					return false
				}
			}
			return true
		})
		return d.wrapAll(found.Nodes)
	})
	_ = o.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		found := selection(n).Find("*")
		if tag != "*" {
			found = found.FilterFunction(func(_ int, s *goquery.Selection) bool {
				return goquery.NodeName(s) == tag
			})
		}
		return d.wrapAll(found.Nodes)
	})
}

func (d *domDocument) newDocumentObject() *goja.Object {
	vm := d.vm()
	o := vm.NewObject()
	root := d.root()

	d.hidden(o, "toString", "[object HTMLDocument]")
	_ = o.Set("nodeType", 9)
	_ = o.Set("nodeName", "#document")
	_ = o.Set("URL", SourceName)
	_ = o.Set("documentURI", SourceName)
	_ = o.Set("defaultView", d.f.global)
	d.accessor(o, "readyState", func() any { return d.readyState }, nil)
	d.accessor(o, "documentElement", func() any { return d.wrap(d.first("html")) }, nil)
	d.accessor(o, "head", func() any { return d.wrap(d.first("head")) }, nil)
	d.accessor(o, "body", func() any { return d.wrap(d.first("body")) }, nil)
	d.accessor(o, "title", func() any {
		return strings.TrimSpace(d.doc.Find("title").First().Text())
	}, func(v goja.Value) {
		title := d.doc.Find("title").First()
		if title.Length() == 0 {
			d.doc.Find("head").First().AppendHtml("<title></title>")
			title = d.doc.Find("title").First()
		}
		title.SetText(v.String())
	})
	d.f.deniedAccessor(o, "cookie", "Failed to read the 'cookie' property from 'Document': The document is sandboxed and lacks the 'allow-same-origin' flag.")

	_ = o.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		want := call.Argument(0).String()
		found := d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr("id")
			return v == want
		})
		if found.Length() == 0 {
			return goja.Null()
		}
		return d.wrap(found.Get(0))
	})
	d.bindQueries(o, root, "Document")

	_ = o.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		if tag == "" || strings.ContainsAny(tag, " <>\"'/=") {
			panic(d.f.namedError("InvalidCharacterError",
				fmt.Sprintf("Failed to execute 'createElement' on 'Document': The tag name provided ('%s') is not a valid name.", tag)))
		}
		return d.wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
	})
	_ = o.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return d.wrap(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	})
	_ = o.Set("createComment", func(call goja.FunctionCall) goja.Value {
		return d.wrap(&html.Node{Type: html.CommentNode, Data: call.Argument(0).String()})
	})

	d.f.bindTarget(o, d.target, func(st *eventState) { d.dispatch(nil, st) })
	return o
}

func (d *domDocument) first(selector string) *html.Node {
	found := d.doc.Find(selector)
	if found.Length() == 0 {
		return nil
	}
	return found.Get(0)
}

func (d *domDocument) newElement(w *domNode) *goja.Object {
	vm := d.vm()
	n := w.node
	o := vm.NewObject()
	sel := func() *goquery.Selection { return selection(n) }
	name := strings.ToUpper(n.Data)

	d.hidden(o, "toString", "[object HTMLElement]")
	_ = o.Set("nodeType", 1)
	_ = o.Set("tagName", name)
	_ = o.Set("nodeName", name)
	_ = o.Set("localName", n.Data)
	_ = o.Set("style", vm.NewObject())
	_ = o.Set("dataset", vm.NewObject())

	attr := func(key string) func() any {
		return func() any { return sel().AttrOr(key, "") }
	}
	setAttr := func(key string) func(goja.Value) {
		return func(v goja.Value) { sel().SetAttr(key, v.String()) }
	}
	d.accessor(o, "id", attr("id"), setAttr("id"))
	d.accessor(o, "className", attr("class"), setAttr("class"))
	d.accessor(o, "href", attr("href"), setAttr("href"))
	d.accessor(o, "src", attr("src"), setAttr("src"))
	d.accessor(o, "type", attr("type"), setAttr("type"))
	d.accessor(o, "name", attr("name"), setAttr("name"))
	d.accessor(o, "placeholder", attr("placeholder"), setAttr("placeholder"))
	for _, flag := range []string{"checked", "disabled", "hidden", "selected", "readOnly"} {
		key := strings.ToLower(flag)
		d.accessor(o, flag, func() any {
			_, ok := sel().Attr(key)
			return ok
		}, func(v goja.Value) {
			if v.ToBoolean() {
				sel().SetAttr(key, "")
			} else {
				sel().RemoveAttr(key)
			}
		})
	}
	d.accessor(o, "value", func() any {
		if n.DataAtom == atom.Textarea {
			return sel().Text()
		}
		return sel().AttrOr("value", "")
	}, func(v goja.Value) {
		if n.DataAtom == atom.Textarea {
			sel().SetText(v.String())
			return
		}
		sel().SetAttr("value", v.String())
	})

	text := func() any { return sel().Text() }
	setText := func(v goja.Value) { sel().SetText(textValue(v)) }
	d.accessor(o, "textContent", text, setText)
	d.accessor(o, "innerText", text, setText)
	d.accessor(o, "innerHTML", func() any {
		h, _ := sel().Html()
		return h
	}, func(v goja.Value) {
		sel().SetHtml(textValue(v))
	})
	d.accessor(o, "outerHTML", func() any {
		h, _ := goquery.OuterHtml(sel())
		return h
	}, nil)

	d.bindTree(o, n)
	_ = o.Set("classList", d.classList(n))

	_ = o.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := sel().Attr(strings.ToLower(call.Argument(0).String()))
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	_ = o.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		sel().SetAttr(strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = o.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		sel().RemoveAttr(strings.ToLower(call.Argument(0).String()))
		return goja.Undefined()
	})
	_ = o.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := sel().Attr(strings.ToLower(call.Argument(0).String()))
		return vm.ToValue(ok)
	})

	d.bindQueries(o, n, "Element")
	_ = o.Set("matches", func(call goja.FunctionCall) goja.Value {
		m := d.compile("matches", "Element", call.Argument(0).String())
		return vm.ToValue(m.Match(n))
	})
	_ = o.Set("closest", func(call goja.FunctionCall) goja.Value {
		m := d.compile("closest", "Element", call.Argument(0).String())
		found := sel().ClosestMatcher(m)
		if found.Length() == 0 {
			return goja.Null()
		}
		return d.wrap(found.Get(0))
	})

	_ = o.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := d.node("appendChild", call.Argument(0))
		d.insert(n, child, nil)
		return d.wrap(child)
	})
	_ = o.Set("append", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			d.insert(n, d.node("append", arg), nil)
		}
		return goja.Undefined()
	})
	_ = o.Set("prepend", func(call goja.FunctionCall) goja.Value {
		ref := n.FirstChild
		for _, arg := range call.Arguments {
			d.insert(n, d.node("prepend", arg), ref)
		}
		return goja.Undefined()
	})
	_ = o.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		child := d.node("appendChild", call.Argument(0))
		var ref *html.Node
		if w := d.unwrap(call.Argument(1)); w != nil {
			ref = w.node
		}
		d.insert(n, child, ref)
		return d.wrap(child)
	})
	_ = o.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := d.unwrap(call.Argument(0))
		if child == nil || child.node.Parent != n {
			panic(d.f.namedError("NotFoundError",
				"Failed to execute 'removeChild' on 'Node': The node to be removed is not a child of this node."))
		}
		n.RemoveChild(child.node)
		return child.obj
	})
	_ = o.Set("replaceChildren", func(call goja.FunctionCall) goja.Value {
		sel().Empty()
		for _, arg := range call.Arguments {
			d.insert(n, d.node("replaceChildren", arg), nil)
		}
		return goja.Undefined()
	})

	_ = o.Set("click", func(goja.FunctionCall) goja.Value {
		d.click(w)
		return goja.Undefined()
	})
	_ = o.Set("focus", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = o.Set("blur", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	if n.DataAtom == atom.Form {
		_ = o.Set("submit", func(goja.FunctionCall) goja.Value {
			d.blockSubmission(n)
			return goja.Undefined()
		})
		_ = o.Set("requestSubmit", func(goja.FunctionCall) goja.Value {
			d.submit(n)
			return goja.Undefined()
		})
		_ = o.Set("reset", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	}

	d.f.bindTarget(o, w.target, func(st *eventState) { d.dispatch(n, st) })
	return o
}

func (d *domDocument) newCharacterData(w *domNode) *goja.Object {
	o := d.vm().NewObject()
	n := w.node
	switch n.Type {
	case html.TextNode:
		_ = o.Set("nodeType", 3)
		_ = o.Set("nodeName", "#text")
	case html.CommentNode:
		_ = o.Set("nodeType", 8)
		_ = o.Set("nodeName", "#comment")
	default:
		_ = o.Set("nodeType", 10)
		_ = o.Set("nodeName", n.Data)
	}
	get := func() any { return n.Data }
	set := func(v goja.Value) { n.Data = textValue(v) }
	d.accessor(o, "textContent", get, set)
	d.accessor(o, "data", get, set)
	d.accessor(o, "nodeValue", get, set)
	d.bindTree(o, n)
	d.f.bindTarget(o, w.target, func(st *eventState) { d.dispatch(n, st) })
	return o
}

// bindTree installs the navigation accessors shared by every node.
func (d *domDocument) bindTree(o *goja.Object, n *html.Node) {
	d.accessor(o, "parentNode", func() any { return d.wrap(n.Parent) }, nil)
	d.accessor(o, "parentElement", func() any {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return d.wrap(n.Parent)
	}, nil)
	d.accessor(o, "isConnected", func() any { return d.attached(n) }, nil)
	d.accessor(o, "childNodes", func() any { return d.wrapAll(children(n, false)) }, nil)
	d.accessor(o, "children", func() any { return d.wrapAll(children(n, true)) }, nil)
	d.accessor(o, "firstChild", func() any { return d.wrap(n.FirstChild) }, nil)
	d.accessor(o, "lastChild", func() any { return d.wrap(n.LastChild) }, nil)
	d.accessor(o, "firstElementChild", func() any { return d.wrap(elementSibling(n.FirstChild, true)) }, nil)
	d.accessor(o, "lastElementChild", func() any { return d.wrap(elementSibling(n.LastChild, false)) }, nil)
	d.accessor(o, "nextSibling", func() any { return d.wrap(n.NextSibling) }, nil)
	d.accessor(o, "previousSibling", func() any { return d.wrap(n.PrevSibling) }, nil)
	d.accessor(o, "nextElementSibling", func() any {
		if n.NextSibling == nil {
			return goja.Null()
		}
		return d.wrap(elementSibling(n.NextSibling, true))
	}, nil)
	d.accessor(o, "previousElementSibling", func() any {
		if n.PrevSibling == nil {
			return goja.Null()
		}
		return d.wrap(elementSibling(n.PrevSibling, false))
	}, nil)
	_ = o.Set("remove", func(goja.FunctionCall) goja.Value {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return goja.Undefined()
	})
	_ = o.Set("contains", func(call goja.FunctionCall) goja.Value {
		other := d.unwrap(call.Argument(0))
		if other == nil {
			return d.vm().ToValue(false)
		}
		for cur := other.node; cur != nil; cur = cur.Parent {
			if cur == n {
				return d.vm().ToValue(true)
			}
		}
		return d.vm().ToValue(false)
	})
}

func (d *domDocument) classList(n *html.Node) *goja.Object {
	vm := d.vm()
	o := vm.NewObject()
	sel := func() *goquery.Selection { return selection(n) }
	names := func(call goja.FunctionCall) []string {
		out := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			out = append(out, arg.String())
		}
		return out
	}
	// update rewrites the class attribute as a single-spaced token list.
	update := func(add, remove []string) {
		tokens := strings.Fields(sel().AttrOr("class", ""))
		out := tokens[:0]
		for _, t := range tokens {
			if !slices.Contains(remove, t) && !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
		for _, t := range add {
			if t != "" && !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
		sel().SetAttr("class", strings.Join(out, " "))
	}
	_ = o.Set("add", func(call goja.FunctionCall) goja.Value {
		update(names(call), nil)
		return goja.Undefined()
	})
	_ = o.Set("remove", func(call goja.FunctionCall) goja.Value {
		update(nil, names(call))
		return goja.Undefined()
	})
	_ = o.Set("contains", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(slices.Contains(strings.Fields(sel().AttrOr("class", "")), call.Argument(0).String()))
	})
	_ = o.Set("toggle", func(call goja.FunctionCall) goja.Value {
		class := call.Argument(0).String()
		on := !slices.Contains(strings.Fields(sel().AttrOr("class", "")), class)
		if force := call.Argument(1); !goja.IsUndefined(force) {
			on = force.ToBoolean()
		}
		if on {
			update([]string{class}, nil)
		} else {
			update(nil, []string{class})
		}
		return vm.ToValue(on)
	})
	d.accessor(o, "length", func() any { return len(strings.Fields(sel().AttrOr("class", ""))) }, nil)
	d.accessor(o, "value", func() any { return sel().AttrOr("class", "") }, nil)
	return o
}

// insert moves child under parent before ref, or last when ref is nil.
func (d *domDocument) insert(parent, child, ref *html.Node) {
	for cur := parent; cur != nil; cur = cur.Parent {
		if cur == child {
			panic(d.f.namedError("HierarchyRequestError",
				"Failed to execute 'appendChild' on 'Node': The new child element contains the parent."))
		}
	}
	if ref != nil && ref.Parent != parent {
		panic(d.f.namedError("NotFoundError",
			"Failed to execute 'insertBefore' on 'Node': The node before which the new node is to be inserted is not a child of this node."))
	}
	if ref == child {
		return
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	if ref == nil {
		parent.AppendChild(child)
	} else {
		parent.InsertBefore(child, ref)
	}
}

func (d *domDocument) attached(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == d.root() {
			return true
		}
	}
	return false
}

// inlineHandler compiles n's on<type> attribute into a function taking
// event, the way browsers build event handler content attributes.
func (d *domDocument) inlineHandler(n *html.Node) func(string) goja.Callable {
	return func(typ string) goja.Callable {
		body, ok := selection(n).Attr("on" + typ)
		if !ok {
			return nil
		}
		v, err := d.vm().RunString("(function (event) {\n" + body + "\n})")
		if err != nil {
			d.f.report(err)
			return nil
		}
		fn, _ := goja.AssertFunction(v)
		return fn
	}
}

// dispatch delivers st along the propagation path of n: the node, its
// wrapped ancestors, the document and the window. A nil n targets the
// document.
func (d *domDocument) dispatch(n *html.Node, st *eventState) {
	if n != nil {
		var path []*domNode
		attr := "on" + st.obj.Get("type").String()
		for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
			if _, ok := d.nodes[cur]; !ok && cur.Type == html.ElementNode {
				if _, has := selection(cur).Attr(attr); has {
					d.wrap(cur)
				}
			}
			if w, ok := d.nodes[cur]; ok {
				path = append(path, w)
			}
		}
		for i, w := range path {
			if i > 0 && !st.bubbles {
				return
			}
			d.f.fire(w.target, w.obj, st)
			if st.stopped || d.f.Destroyed() {
				return
			}
		}
		if !st.bubbles || !d.attached(n) {
			return
		}
	}
	d.f.fire(d.target, d.obj, st)
	if st.stopped || !st.bubbles || d.f.Destroyed() {
		return
	}
	d.f.fire(d.f.window, d.f.global, st)
}

// click dispatches a click and runs the element's activation behavior.
func (d *domDocument) click(w *domNode) {
	if _, ok := selection(w.node).Attr("disabled"); ok {
		return
	}
	st := d.f.newEvent("click", w.obj, true, true)
	d.dispatch(w.node, st)
	if st.prevented {
		return
	}

	n := w.node
	switch n.DataAtom {
	case atom.Button, atom.Input:
		kind := strings.ToLower(selection(n).AttrOr("type", ""))
		submits := kind == "submit" || kind == "image" || (n.DataAtom == atom.Button && kind == "")
		if !submits {
			return
		}
		if form := selection(n).Closest("form"); form.Length() > 0 {
			d.submit(form.Get(0))
		}
	case atom.A:
		href := strings.TrimSpace(selection(n).AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		d.f.logger.Warn("Blocked navigation to '" + href + "' from a sandboxed frame.")
	}
}

// submit fires a cancelable submit event and blocks the submission.
func (d *domDocument) submit(form *html.Node) {
	st := d.f.newEvent("submit", d.wrap(form), true, true)
	d.dispatch(form, st)
	if !st.prevented {
		d.blockSubmission(form)
	}
}

func (d *domDocument) blockSubmission(form *html.Node) {
	action := selection(form).AttrOr("action", SourceName)
	d.f.logger.Warn("Blocked form submission to '" + action +
		"' because the form's frame is sandboxed and the 'allow-forms' permission is not set.")
}

func children(n *html.Node, elementsOnly bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !elementsOnly || c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// elementSibling walks from n in one direction to the first element.
func elementSibling(n *html.Node, forward bool) *html.Node {
	for cur := n; cur != nil; {
		if cur.Type == html.ElementNode {
			return cur
		}
		if forward {
			cur = cur.NextSibling
		} else {
			cur = cur.PrevSibling
		}
	}
	return nil
}

func textValue(v goja.Value) string {
	if v == nil || goja.IsNull(v) || goja.IsUndefined(v) {
		return ""
	}
	return v.String()
}
