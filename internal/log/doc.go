// Package log builds the application's slog loggers.
//
// New returns a text or JSON logger writing to stderr and, optionally, to a
// size-rotated log file. Every logger is wrapped in a RedactHandler, which
// masks credentials in log attributes: cookies, authorization headers,
// token-like values, and the values of any extra request headers the operator
// configured (for example a contact or API header sent to the catalog site).
//
//	logger, closer, err := log.New(log.Options{
//	    Writer:  os.Stderr,
//	    Verbose: true,
//	    File:    "/var/log/vutcrawl.log",
//	    Redact:  []string{"X-Api-Key"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	slog.SetDefault(logger)
package log
