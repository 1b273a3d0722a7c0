package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricAccountsCreated     = "accounts_created_total"
	MetricAccountsPruned      = "accounts_pruned_total"
	MetricAccountsLive        = "accounts_live"
	MetricPrunePasses         = "prune_passes_total"
	MetricAuditWriteFailures  = "audit_write_failures_total"
	MetricUnitResolutions     = "unit_resolutions_total"
	MetricUnitResolveFailures = "unit_resolve_failures_total"
	MetricArchiveReadErrors   = "archive_read_errors_total"
	MetricRateLimited         = "rate_limited_total"
)

var CounterAccountsCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Name:      MetricAccountsCreated,
		Help:      "Accounts created by explicit creation or auto-provisioning.",
	},
)

var CounterAccountsPruned = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Name:      MetricAccountsPruned,
		Help:      "Accounts removed for inactivity.",
	},
)

var GaugeAccountsLive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "registry",
		Name:      MetricAccountsLive,
		Help:      "Accounts currently in the live set.",
	},
)

var CounterPrunePasses = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Name:      MetricPrunePasses,
		Help:      "Prune passes that ran (rate-limited calls excluded).",
	},
)

var CounterAuditWriteFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Name:      MetricAuditWriteFailures,
		Help:      "Audit sink writes that failed during pruning.",
	},
)

// CounterUnitResolutions is labelled by the step that produced the unit:
// cache, builtin or archive.
var CounterUnitResolutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      MetricUnitResolutions,
		Help:      "Successful unit resolutions by step.",
	},
	[]string{
		"step",
	},
)

var CounterUnitResolveFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      MetricUnitResolveFailures,
		Help:      "Resolutions that exhausted every step.",
	},
)

var CounterArchiveReadErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      MetricArchiveReadErrors,
		Help:      "Tenant archives or entries skipped because they could not be read.",
	},
)

var CounterRateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "http",
		Name:      MetricRateLimited,
		Help:      "Requests rejected by a rate limiter.",
	},
	[]string{
		"route",
	},
)

func init() {
	prometheus.MustRegister(CounterAccountsCreated)
	prometheus.MustRegister(CounterAccountsPruned)
	prometheus.MustRegister(GaugeAccountsLive)
	prometheus.MustRegister(CounterPrunePasses)
	prometheus.MustRegister(CounterAuditWriteFailures)
	prometheus.MustRegister(CounterUnitResolutions)
	prometheus.MustRegister(CounterUnitResolveFailures)
	prometheus.MustRegister(CounterArchiveReadErrors)
	prometheus.MustRegister(CounterRateLimited)
}
