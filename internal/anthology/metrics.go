package anthology

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// conferencesDiscovered tracks conference listings found across all years.
	conferencesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_conferences_discovered_total",
		Help: "The total number of conference listings discovered.",
	})
	// papersWalked tracks paper descriptors produced by listing walks.
	papersWalked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_papers_walked_total",
		Help: "The total number of papers enumerated from listings.",
	})
	// pdfsParsed tracks PDFs whose text was successfully extracted.
	pdfsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pdfs_parsed_total",
		Help: "The total number of PDFs parsed for text.",
	})
	// emailsExtracted tracks emails surviving the boilerplate filter.
	emailsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_emails_extracted_total",
		Help: "The total number of emails extracted from PDFs.",
	})
	// stageFailures tracks unit failures by pipeline stage.
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_stage_failures_total",
		Help: "The total number of per-unit failures, labeled by stage.",
	}, []string{"stage"})
)
