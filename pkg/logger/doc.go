// Package logger provides the structured logging interface used across xscraper.
//
// It wraps zerolog. Console output is colored unless disabled; when a log file
// is configured entries go to both stderr and the file.
//
// There is no global logger. Build one in main and hand it to each component:
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	s := scraper.New(cfg, log, ...)
//
//	log.WithField("id", "1234").Info("Looking up post")
//
// Tests use NewNopLogger or NewTestLogger, the latter capturing entries so
// assertions can be made on what was logged.
package logger
