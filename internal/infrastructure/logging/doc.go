// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Components receive a *zap.Logger and derive named children from it, so a
// frame's native console output can be traced back to its session:
//
//	logger := logging.NewDefault()
//	frameLog := logging.Component(logger.Logger, "sandbox").With(zap.String("frame", id))
package logging
