// Package logging sets up structured logging for restpipe on top of log/slog.
//
// Every component logs with a "subsystem" attribute so output can be
// filtered per area:
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//	log := logging.For("mock")
//	log.Info("server started", "port", 3000)
//
// PipelineLogger adapts a *slog.Logger to the request pipeline's Logger
// interface: dispatch is logged at debug, responses at info and failures at
// warn. Bodies are truncated before they are logged.
package logging
