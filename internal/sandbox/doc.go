/*
Package sandbox runs preview documents in isolated, in-process frames.

# Overview

A Frame is the headless counterpart of a sandboxed iframe
(sandbox="allow-scripts", srcdoc document). Each frame owns a goja runtime
driven by a goja_nodejs event loop, so every script, timer callback and
listener runs on one goroutine in task order.

# Environment

Frames expose a browser-shaped global scope:

  - window, self, parent, top and a goquery-backed document
  - parent.postMessage, the only way out of the frame
  - setTimeout, setInterval, queueMicrotask and requestAnimationFrame
  - error and unhandledrejection events on window
  - a native console that writes to the service log

Node.js style globals (require, process, module) are removed. Navigation,
popups, form submission and storage are denied the way the browser denies
them to an opaque-origin frame.

# Lifecycle

The Renderer keeps one live frame per host window. Loading a document with
a new fingerprint destroys the current frame before the next one starts,
so no two revisions of a document ever run side by side. Each frame gets a
larger generation than the last and stamps it on every message it posts.

# Usage

	window := host.NewWindow(logger)
	renderer := sandbox.NewRenderer(window, sandbox.DefaultConfig(), logger, metrics)
	defer renderer.Close()

	if _, err := renderer.Load(doc); err != nil {
		return err
	}
*/
package sandbox
