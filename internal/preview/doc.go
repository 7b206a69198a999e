// Package preview turns a workspace into the document a frame executes.
//
// The pipeline is pure: Aggregate merges files per kind, Synthesize wraps
// the merged sources in a fixed document shell with the console
// instrumentation injected first, and Export produces the downloadable
// static page without instrumentation. Synthesizer memoizes the last
// document so unchanged sources never trigger a frame reload.
package preview
