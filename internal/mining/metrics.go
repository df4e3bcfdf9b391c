package mining

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VariantSync/DiffDetective-sub004/editclass"
	"github.com/VariantSync/DiffDetective-sub004/parse"
)

// Patch outcomes.
const (
	OutcomeParsed  = "parsed"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics counts mining results. A nil *Metrics records nothing.
type Metrics struct {
	patches     *prometheus.CounterVec
	parseErrors *prometheus.CounterVec
	patterns    *prometheus.CounterVec
}

// NewMetrics registers the mining counters on reg. Counters that reg
// already holds are reused, so several miners can share one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffdetective",
			Name:      "patches_total",
			Help:      "Mined patches by outcome.",
		}, []string{"outcome"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffdetective",
			Name:      "parse_errors_total",
			Help:      "Patches that could not be parsed, by error kind.",
		}, []string{"kind"}),
		patterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffdetective",
			Name:      "patterns_total",
			Help:      "Classified artifacts by elementary pattern.",
		}, []string{"pattern"}),
	}
	var err error
	if m.patches, err = register(reg, m.patches); err != nil {
		return nil, err
	}
	if m.parseErrors, err = register(reg, m.parseErrors); err != nil {
		return nil, err
	}
	if m.patterns, err = register(reg, m.patterns); err != nil {
		return nil, err
	}

	// Known label values show up as zero before the first increment.
	for _, o := range []string{OutcomeParsed, OutcomeFailed, OutcomeSkipped} {
		m.patches.WithLabelValues(o)
	}
	for _, k := range parse.ErrorKinds {
		m.parseErrors.WithLabelValues(string(k))
	}
	for _, p := range editclass.All {
		m.patterns.WithLabelValues(p.String())
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) observe(r PatchResult) {
	if m == nil {
		return
	}
	switch {
	case r.Skipped:
		m.patches.WithLabelValues(OutcomeSkipped).Inc()
	case r.Err != nil:
		m.patches.WithLabelValues(OutcomeFailed).Inc()
		if kind, ok := parse.KindOf(r.Err); ok {
			m.parseErrors.WithLabelValues(string(kind)).Inc()
		}
	default:
		m.patches.WithLabelValues(OutcomeParsed).Inc()
		for p, n := range r.Counts {
			m.patterns.WithLabelValues(p.String()).Add(float64(n))
		}
	}
}

// WriteMetrics writes the metrics gathered by g to path in the text
// exposition format.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
