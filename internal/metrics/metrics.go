package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all jobhouse metrics
const namespace = "jobhouse"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthCheckStatus tracks individual health check results
// Values: 0 = fail, 1 = warn, 2 = pass
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=warn, 2=pass)",
	},
	[]string{"check"},
)

// Domain metrics

// ApplicationsSubmitted counts accepted event and job applications.
var ApplicationsSubmitted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "applications_submitted_total",
		Help:      "Total number of applications accepted",
	},
	[]string{"kind"}, // kind: event|job
)

// ApplicationConflicts counts submissions rejected by the one-per-user constraint.
var ApplicationConflicts = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "application_conflicts_total",
		Help:      "Total number of duplicate application submissions rejected",
	},
	[]string{"kind"},
)

// EventDeletions counts event cascade deletions by outcome.
var EventDeletions = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_deletions_total",
		Help:      "Total number of event deletions by outcome",
	},
	[]string{"outcome"}, // outcome: success|incomplete|error
)

// CascadedApplications counts applications removed together with their event.
var CascadedApplications = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascaded_applications_total",
		Help:      "Total number of event applications removed by event deletion",
	},
)

// NoticePublishFailures counts notices that could not be delivered to the broker.
var NoticePublishFailures = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notice_publish_failures_total",
		Help:      "Total number of domain notices that failed to publish",
	},
	[]string{"type"},
)

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
