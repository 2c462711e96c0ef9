// Package logger provides adapters for popular logging libraries to work
// with embracedb's Logger interface, plus an async decorator for callers
// that cannot afford logging on the write path.
//
// The standard library's slog.Logger already implements embracedb.Logger
// directly. Example with zap:
//
//	zapLogger, _ := zap.NewProduction()
//
//	db, err := embracedb.Open("data.wal",
//	    embracedb.WithLogger(logger.NewZap(zapLogger)),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
package logger
