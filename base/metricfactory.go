package base

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
)

// MetricFactory manages Prometheus metrics
//
// Factories form a tree: a sub-factory inherits the parent's name prefix and fixed
// labels, so every component only ever names its own metrics.
type MetricFactory struct {
	namePrefix        string
	parentLabelNames  []string
	parentLabelValues []string
	registryLock      *sync.Mutex
	registry          map[string]prometheus.Collector
}

// NewMetricFactory creates a factory with a prefix for metric names and fixed labels
// applied to all metrics created from it
func NewMetricFactory(prefix string, labelNames []string, labelValues []string) *MetricFactory {
	if len(labelNames) != len(labelValues) {
		logger.Panicf("different len of labelNames (%s) and labelValues (%s)",
			strings.Join(labelNames, ","), strings.Join(labelValues, ","))
	}
	return &MetricFactory{
		namePrefix:        prefix,
		parentLabelNames:  labelNames,
		parentLabelValues: labelValues,
		registryLock:      &sync.Mutex{},
		registry:          make(map[string]prometheus.Collector, 100),
	}
}

// NewSubFactory creates a sub-factory with more prefix and fixed labels added
func (factory *MetricFactory) NewSubFactory(prefix string, labelNames []string, labelValues []string) *MetricFactory {
	fullPrefix, allLabelNames, allLabelValues := factory.concatNameAndLabels(prefix, labelNames, labelValues)
	return &MetricFactory{
		namePrefix:        fullPrefix,
		parentLabelNames:  allLabelNames,
		parentLabelValues: allLabelValues,
		registryLock:      factory.registryLock,
		registry:          factory.registry,
	}
}

// AddOrGetCounter adds or gets a counter
func (factory *MetricFactory) AddOrGetCounter(name string, help string, labelNames []string, labelValues []string) promext.RWCounter {
	if len(labelNames) != len(labelValues) {
		logger.Panicf("different lengths of labelNames (%s) and labelValues (%s)",
			strings.Join(labelNames, ","), strings.Join(labelValues, ","))
	}
	return factory.AddOrGetCounterVec(name, help, labelNames, labelValues).WithLabelValues()
}

// AddOrGetCounterVec adds or gets a counter-vec with leftmost label values
func (factory *MetricFactory) AddOrGetCounterVec(name string, help string, labelNames []string, leftmostLabelValues []string) *promext.RWCounterVec {
	fullName, allLabelNames, allLeftmostLabelValues := factory.concatNameAndLabels(name, labelNames, leftmostLabelValues)

	factory.registryLock.Lock()
	var counterVec *promext.RWCounterVec
	if metricVec, ok := factory.registry[fullName]; ok {
		counterVec = metricVec.(*promext.RWCounterVec)
	} else {
		counterOpts := prometheus.CounterOpts{}
		counterOpts.Name = fullName
		counterOpts.Help = help
		counterVec = promext.NewRWCounterVec(counterOpts, allLabelNames)
		factory.registry[fullName] = (prometheus.Collector)(counterVec)
		if err := prometheus.Register(counterVec); err != nil {
			logger.Panicf("failed to register counter-vec '%s': %s", fullName, err.Error())
		}
	}
	factory.registryLock.Unlock()

	curriedCounterVec, cerr := counterVec.CurryWith(buildLabels(allLabelNames, allLeftmostLabelValues))
	if cerr != nil {
		logger.Panicf("failed to curry counter-vec '%s': %s", fullName, cerr.Error())
	}
	return curriedCounterVec
}

// AddOrGetGauge adds or gets a gauge
//
// Gauges must be updated by Add/Sub not Set, because there could be multiple updaters
func (factory *MetricFactory) AddOrGetGauge(name string, help string, labelNames []string, labelValues []string) promext.RWGauge {
	if len(labelNames) != len(labelValues) {
		logger.Panicf("different lengths of labelNames (%s) and labelValues (%s)",
			strings.Join(labelNames, ","), strings.Join(labelValues, ","))
	}
	return factory.AddOrGetGaugeVec(name, help, labelNames, labelValues).WithLabelValues()
}

// AddOrGetGaugeVec adds or gets a gauge-vec with leftmost label values
func (factory *MetricFactory) AddOrGetGaugeVec(name string, help string, labelNames []string, leftmostLabelValues []string) *promext.RWGaugeVec {
	fullName, allLabelNames, allLeftmostLabelValues := factory.concatNameAndLabels(name, labelNames, leftmostLabelValues)

	factory.registryLock.Lock()
	var gaugeVec *promext.RWGaugeVec
	if metricVec, ok := factory.registry[fullName]; ok {
		gaugeVec = metricVec.(*promext.RWGaugeVec)
	} else {
		gaugeOpts := prometheus.GaugeOpts{}
		gaugeOpts.Name = fullName
		gaugeOpts.Help = help
		gaugeVec = promext.NewRWGaugeVec(gaugeOpts, allLabelNames)
		factory.registry[fullName] = (prometheus.Collector)(gaugeVec)
		if err := prometheus.Register(gaugeVec); err != nil {
			logger.Panicf("failed to register gauge-vec '%s': %s", fullName, err.Error())
		}
	}
	factory.registryLock.Unlock()

	curriedGaugeVec, cerr := gaugeVec.CurryWith(buildLabels(allLabelNames, allLeftmostLabelValues))
	if cerr != nil {
		logger.Panicf("failed to curry gauge-vec '%s': %s", fullName, cerr.Error())
	}
	return curriedGaugeVec
}

func (factory *MetricFactory) concatNameAndLabels(name string, labelNames []string, labelValues []string) (string, []string, []string) {
	fullName := factory.namePrefix + name
	allLabelNames := append(append(make([]string, 0, len(factory.parentLabelNames)+len(labelNames)), factory.parentLabelNames...), labelNames...)
	allLabelValues := append(append(make([]string, 0, len(factory.parentLabelValues)+len(labelValues)), factory.parentLabelValues...), labelValues...)
	return fullName, allLabelNames, allLabelValues
}

func buildLabels(labelNames []string, labelValues []string) prometheus.Labels {
	labels := make(prometheus.Labels, len(labelValues))
	for i, value := range labelValues {
		labels[labelNames[i]] = value
	}
	return labels
}
