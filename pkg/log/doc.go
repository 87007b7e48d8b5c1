package log

// Package log offers per-service loggers with a small, stable surface while
// writing through zerolog.
//
// Key Features
//
//   - Per service loggers via ForService(name)
//   - Automatic prefix in every line: `[name>]` plus a `service` field
//   - Convenience level helpers: Infof, Warnf, Errorf, Debugf
//   - Debug logging can be enabled globally (SetGlobalDebug, SetLevel("debug"))
//     or per service (EnableDebugFor / DisableDebugFor)
//   - Central output writer (SetOutput) that updates existing loggers
//   - Zerolog() for call sites that want structured fields
//
// Basic Usage
//
//	gw := log.ForService("gateway")
//	gw.Infof("client connected: %s", email)
//	gw.Zerolog().Info().Str("user_id", id).Msg("online")
//
// Output Routing
//
// The default output is a zerolog.ConsoleWriter on stderr. Tests redirect
// output by calling SetOutput with a bytes.Buffer, which yields JSON lines.
//
// Thread Safety
//
// All exported functions are safe for concurrent use.
