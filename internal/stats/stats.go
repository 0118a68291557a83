package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// Metric is a counter name known to the stats updater. Using a distinct type
// keeps the hub and dispatcher from incrementing a counter that was never
// registered via a stray string.
type Metric string

const (
	NumConnections   Metric = "NumConnections"
	NumRooms         Metric = "NumRooms"
	EventsDispatched Metric = "EventsDispatched"
	EventsDropped    Metric = "EventsDropped"
)

type StatsProvider interface {
	Incr(metric Metric)
	Decr(metric Metric)
	RegisterMetric(metric Metric)
	Run()
}

type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
}

type metricsUpdateReq struct {
	metric Metric
	delta  int
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// NewStatsUpdater creates a new stats updater instance.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.vars = expvar.NewMap("healthsync-stats")
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
}

func (su *StatsUpdater) updateMetrics() {
	for req := range su.updateChan {
		counter := su.vars.Get(string(req.metric))
		if counter == nil {
			panic("metric not registered: " + string(req.metric))
		}

		counter.(*expvar.Int).Add(int64(req.delta))
	}
}

func (su *StatsUpdater) Incr(metric Metric) {
	su.updateChan <- &metricsUpdateReq{metric: metric, delta: 1}
}

func (su *StatsUpdater) Decr(metric Metric) {
	su.updateChan <- &metricsUpdateReq{metric: metric, delta: -1}
}

func (su *StatsUpdater) RegisterMetric(metric Metric) {
	su.vars.Set(string(metric), expvar.NewInt(string(metric)))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	close(su.updateChan)
}
