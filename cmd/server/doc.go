// Package main is the livecode command-line entry point.
//
// It serves the browser playground and also runs projects from disk
// without a browser:
//
//	# Serve the playground (headless previews by default)
//	livecode serve
//
//	# Seed every new session from a directory and follow edits to it
//	livecode serve --seed ./site --watch
//
//	# Run a project headlessly and print what it logged
//	livecode run ./site --click "#btn" --wait 2s
//
//	# Write the standalone project.html
//	livecode export ./site -o dist/project.html
//
// Configuration comes from defaults, the file named by LIVECODE_CONFIG and
// LIVECODE_* environment variables, in that order.
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
