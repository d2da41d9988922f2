package aws4

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatRegistry = prometheus.NewRegistry()

	statSignatures = promauto.With(StatRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "SignaturesComputed",
			Help: "Total count of request signatures computed",
		},
		[]string{
			"type",
		},
	)
	statChunksSigned = promauto.With(StatRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "ChunksSigned",
			Help: "Total count of aws-chunked body chunks signed",
		},
	)
	statSkewCorrections = promauto.With(StatRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "ClockSkewCorrections",
			Help: "Total count of clock skew corrections applied",
		},
	)
)
