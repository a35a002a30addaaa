package domain

import "time"

// RouterMetrics records the operational metrics of the router (spec §6).
type RouterMetrics interface {
	ObserveRoute(publicName, upstreamID, status string, duration time.Duration)
	SetUpstreamStatus(upstreamID string, status UpstreamStatus)
	ObserveIndexBuild(duration time.Duration, size int)
	ObserveSearch(status string, duration time.Duration)
}

// NopRouterMetrics discards every observation. Used when no RouterMetrics is
// supplied, mirroring the teacher's default-if-nil constructor idiom.
type NopRouterMetrics struct{}

func (NopRouterMetrics) ObserveRoute(string, string, string, time.Duration)  {}
func (NopRouterMetrics) SetUpstreamStatus(string, UpstreamStatus)            {}
func (NopRouterMetrics) ObserveIndexBuild(time.Duration, int)                {}
func (NopRouterMetrics) ObserveSearch(string, time.Duration)                 {}

var _ RouterMetrics = NopRouterMetrics{}
