// Package progress tracks run statistics and renders aggregate progress.
//
// Workers record outcomes on an Aggregator; a Reporter samples it on a fixed
// cadence and redraws a single progress line until it is stopped, then prints
// the final statistics once.
//
// # Usage
//
//	agg := progress.NewAggregator(total, outstanding)
//	reporter := progress.NewReporter(agg, progress.Options{Output: os.Stdout})
//	reporter.Start()
//	// workers call agg.RecordSuccess / agg.RecordFailure / agg.RecordSkip
//	reporter.Stop()
//
// # Output Format
//
//	[tagpages] Pages: 10098 total | 2400 on disk | 7698 outstanding | Workers: 4
//	[tagpages] ████████░░░░░░░░  51% | 3926 ok | 2 failed | 120.4 pages/s
//	Statistics:
//	Completed tasks: 7690
//	Failed tasks: 8
//	Total: 7690/7698 (99.9%) | on disk: 10090/10098
package progress
