package sqlorm

import (
	"database/sql"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	kindSelect  = "select"
	kindExecute = "execute"
)

// poolSeq numbers the pools of the process, so that pools on the same database
// export distinct pool statistics.
var poolSeq atomic.Int64

// metrics counts and times the statements run on a pool.
type metrics struct {
	statements *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	dbStats    prometheus.Collector

	// statsReg registers dbStats under the pool label. It is nil when the
	// metrics are not exported.
	statsReg prometheus.Registerer
}

func newMetrics(reg prometheus.Registerer, db *sql.DB, dbName string) (*metrics, error) {
	m := &metrics{
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlorm_statements_total",
			Help: "Number of SQL statements run, by kind and result.",
		}, []string{"kind", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sqlorm_statement_duration_seconds",
			Help:    "Time taken to run SQL statements, including connection acquisition.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		dbStats: collectors.NewDBStatsCollector(db, dbName),
	}
	if reg == nil {
		return m, nil
	}

	// Pools sharing a registry share the statement metrics.
	var are prometheus.AlreadyRegisteredError
	if err := reg.Register(m.statements); errors.As(err, &are) {
		m.statements = are.ExistingCollector.(*prometheus.CounterVec)
	} else if err != nil {
		return nil, err
	}
	if err := reg.Register(m.latency); errors.As(err, &are) {
		m.latency = are.ExistingCollector.(*prometheus.HistogramVec)
	} else if err != nil {
		return nil, err
	}
	statsReg := prometheus.WrapRegistererWith(prometheus.Labels{
		"pool": strconv.FormatInt(poolSeq.Add(1), 10),
	}, reg)
	if err := statsReg.Register(m.dbStats); err != nil {
		return nil, err
	}
	m.statsReg = statsReg
	return m, nil
}

func (m *metrics) observe(kind string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.statements.WithLabelValues(kind, result).Inc()
	m.latency.WithLabelValues(kind).Observe(took.Seconds())
}

// unregister removes the per-pool collector. The statement metrics may be
// shared with other pools and stay registered.
func (m *metrics) unregister() {
	if m.statsReg != nil {
		m.statsReg.Unregister(m.dbStats)
	}
}
