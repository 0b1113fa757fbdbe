// Package metrics exposes node activity as Prometheus collectors and serves
// them over HTTP when an address is configured.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "counter_node"

// Collector counts wire traffic. Its methods satisfy session.Observer.
type Collector struct {
	received     *prometheus.CounterVec
	sent         *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	decodeErrors prometheus.Counter
}

func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Decoded inbound messages by body type.",
		}, []string{"type"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound messages written by body type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound lines or messages that produced no reply, by reason.",
		}, []string{"reason"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound lines that failed to decode.",
		}),
	}
	for _, col := range []prometheus.Collector{c.received, c.sent, c.dropped, c.decodeErrors} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Received(msgType string) { c.received.WithLabelValues(msgType).Inc() }
func (c *Collector) Sent(msgType string)     { c.sent.WithLabelValues(msgType).Inc() }
func (c *Collector) Dropped(reason string)   { c.dropped.WithLabelValues(reason).Inc() }
func (c *Collector) DecodeFailed()           { c.decodeErrors.Inc() }

// StateFunc reports the node's current counter value and cluster size.
type StateFunc func() (counter int64, clusterSize int)

// RegisterState adds gauges that read node state at scrape time.
func RegisterState(reg prometheus.Registerer, state StateFunc) error {
	counter := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "counter_value",
		Help:      "Current value of the local counter.",
	}, func() float64 {
		v, _ := state()
		return float64(v)
	})
	cluster := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cluster_nodes",
		Help:      "Number of node ids announced by init.",
	}, func() float64 {
		_, n := state()
		return float64(n)
	})
	if err := reg.Register(counter); err != nil {
		return err
	}
	return reg.Register(cluster)
}

// RegisterLimiter adds a gauge reporting how many senders hold a rate limit
// bucket.
func RegisterLimiter(reg prometheus.Registerer, tracked func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rate_limit_sources",
		Help:      "Senders currently tracked by the rate limiter.",
	}, func() float64 {
		return float64(tracked())
	}))
}

func NewServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs srv until ctx is done, then shuts it down. A clean shutdown
// returns nil.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
