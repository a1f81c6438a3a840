// Package harvest runs one download of the tag listing: it scans the output
// directory, splits the outstanding index range across workers, fetches each
// page with a single retry and writes it to disk while progress is rendered.
//
// Usage:
//
//	cfg := config.Default()
//	cfg.APIKey, cfg.UserID = key, uid
//
//	engine, err := harvest.New(cfg)
//	if err != nil {
//	    return err
//	}
//	summary, err := engine.Run(ctx)
//
// A page failure never aborts the run; it shows up in Summary.FailedPages.
// Run only fails on startup problems (unusable output directory, corrupt
// artifact names, fetcher construction) or cancellation.
package harvest
