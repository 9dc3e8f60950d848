package obs

import "github.com/prometheus/client_golang/prometheus"

// RegisterBuildInfo publishes build_info{version,commit} 1 on reg.
func RegisterBuildInfo(reg prometheus.Registerer, component, version, commit string) error {
	g := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "build_info",
			Help:        "Console build information.",
			ConstLabels: prometheus.Labels{"component": component},
		},
		[]string{"version", "commit"},
	)
	if err := reg.Register(g); err != nil {
		return err
	}
	g.WithLabelValues(version, commit).Set(1)
	return nil
}
