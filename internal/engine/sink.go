package engine

// ProgressSink receives run progress. Implementations must return
// quickly; the engine calls them from a single collector goroutine,
// never from workers.
type ProgressSink interface {
	// OnProgress reports completed chunks out of the total. Counts are
	// monotonically non-decreasing within a dispatch pass.
	OnProgress(completed, total int)

	// OnStatus reports a human-readable phase change or notable event.
	OnStatus(message string)
}

// NopSink discards all progress.
type NopSink struct{}

func (NopSink) OnProgress(int, int) {}

func (NopSink) OnStatus(string) {}
