package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCountersUsableWithoutInit(t *testing.T) {
	before := counterValue(t, WriteFailures.WithLabelValues("purchase"))
	WriteFailures.WithLabelValues("purchase").Inc()
	if got := counterValue(t, WriteFailures.WithLabelValues("purchase")); got != before+1 {
		t.Errorf("WriteFailures = %v, want %v", got, before+1)
	}

	before = counterValue(t, AnnotationFetchFailures)
	AnnotationFetchFailures.Inc()
	if got := counterValue(t, AnnotationFetchFailures); got != before+1 {
		t.Errorf("AnnotationFetchFailures = %v, want %v", got, before+1)
	}
}

func TestItemCollectorDescribe(t *testing.T) {
	ch := make(chan *prometheus.Desc, 1)
	(&ItemCollector{}).Describe(ch)
	if got := <-ch; got != itemsDesc {
		t.Errorf("Describe() = %v, want items descriptor", got)
	}
}
