package packstore

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

type dbMetrics struct {
	set *metrics.Set

	gets          *metrics.Counter
	misses        *metrics.Counter
	sets          *metrics.Counter
	deletes       *metrics.Counter
	batchWrites   *metrics.Counter
	decodeErrors  *metrics.Counter
	writeErrors   *metrics.Counter
	openIterators *metrics.Counter
	commits       *metrics.Histogram
}

func newDBMetrics(set *metrics.Set, path string) *dbMetrics {
	if set == nil {
		set = metrics.NewSet()
	}

	name := func(metric string) string {
		return fmt.Sprintf(`packstore_%s{path=%q}`, metric, path)
	}
	return &dbMetrics{
		set:           set,
		gets:          set.GetOrCreateCounter(name("gets_total")),
		misses:        set.GetOrCreateCounter(name("misses_total")),
		sets:          set.GetOrCreateCounter(name("sets_total")),
		deletes:       set.GetOrCreateCounter(name("deletes_total")),
		batchWrites:   set.GetOrCreateCounter(name("batch_writes_total")),
		decodeErrors:  set.GetOrCreateCounter(name("decode_errors_total")),
		writeErrors:   set.GetOrCreateCounter(name("write_errors_total")),
		openIterators: set.GetOrCreateCounter(name("open_iterators")),
		commits:       set.GetOrCreateHistogram(name("commit_duration_seconds")),
	}
}

// WritePrometheus writes the store metrics in Prometheus text format.
func (db *DB) WritePrometheus(w io.Writer) {
	db.metrics.set.WritePrometheus(w)
}
