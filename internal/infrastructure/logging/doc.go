// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Every daemon component takes a *Logger and names itself with Named, so a
// single line of output always identifies the subsystem it came from:
//
//	logger := logging.NewDefault()
//	monLog := logger.Named("connectivity")
//	monLog.Info("probe succeeded", zap.Duration("rtt", rtt))
package logging
