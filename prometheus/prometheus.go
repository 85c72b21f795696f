package prometheus

import (
	"net/http"

	"github.com/nfx/storable/app"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Prometheus struct {
	addr string
}

func NewPrometheus() *Prometheus {
	return &Prometheus{}
}

func (p *Prometheus) Configure(c app.Config) error {
	p.addr = c.StrOr("addr", "localhost:2112")
	return nil
}

func (p *Prometheus) Start(ctx app.Context) {
	go p.main(ctx)
}

func (p *Prometheus) main(ctx app.Context) {
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(p.addr, nil)
	if err != nil {
		return
	}
}
