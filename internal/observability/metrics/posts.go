package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_created_total",
			Help: "Total number of posts created",
		},
		[]string{"hidden"},
	)

	PostsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posts_updated_total",
			Help: "Total number of post updates",
		},
	)

	PostsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posts_deleted_total",
			Help: "Total number of posts deleted",
		},
	)
)
