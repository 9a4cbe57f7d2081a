package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks the number of HTTP requests dispatched.
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// requestErrorsTotal tracks the number of requests that resulted in an error.
	requestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// retriesTotal tracks how often a failed request was retried.
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_request_retries_total",
		Help: "The total number of request retries.",
	})
)
