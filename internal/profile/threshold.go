package profile

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MetricKind groups metrics by how they aggregate.
type MetricKind string

const (
	KindTrend   MetricKind = "trend"
	KindRate    MetricKind = "rate"
	KindCounter MetricKind = "counter"
	KindGauge   MetricKind = "gauge"
)

// Built-in metric names.
const (
	MetricHTTPReqDuration   = "http_req_duration"
	MetricHTTPReqFailed     = "http_req_failed"
	MetricHTTPReqs          = "http_reqs"
	MetricIterations        = "iterations"
	MetricIterationDuration = "iteration_duration"
	MetricDroppedIterations = "dropped_iterations"
	MetricChecks            = "checks"
	MetricDataSent          = "data_sent"
	MetricDataReceived      = "data_received"
	MetricVUs               = "vus"
	MetricVUsMax            = "vus_max"
)

// Metrics lists every metric a threshold may reference.
var Metrics = map[string]MetricKind{
	MetricHTTPReqDuration:   KindTrend,
	MetricIterationDuration: KindTrend,
	MetricHTTPReqFailed:     KindRate,
	MetricChecks:            KindRate,
	MetricHTTPReqs:          KindCounter,
	MetricIterations:        KindCounter,
	MetricDroppedIterations: KindCounter,
	MetricDataSent:          KindCounter,
	MetricDataReceived:      KindCounter,
	MetricVUs:               KindGauge,
	MetricVUsMax:            KindGauge,
}

// Aggregations.
const (
	AggAvg        = "avg"
	AggMin        = "min"
	AggMax        = "max"
	AggMed        = "med"
	AggPercentile = "p"
	AggRate       = "rate"
	AggCount      = "count"
	AggValue      = "value"
)

var allowedAggs = map[MetricKind]map[string]bool{
	KindTrend:   {AggAvg: true, AggMin: true, AggMax: true, AggMed: true, AggPercentile: true},
	KindRate:    {AggRate: true},
	KindCounter: {AggCount: true, AggRate: true},
	KindGauge:   {AggValue: true, AggMin: true, AggMax: true},
}

// Operator compares an aggregated value with a threshold bound.
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

// Compare reports whether actual op bound holds.
func (op Operator) Compare(actual, bound float64) bool {
	switch op {
	case OpLess:
		return actual < bound
	case OpLessEqual:
		return actual <= bound
	case OpGreater:
		return actual > bound
	case OpGreaterEqual:
		return actual >= bound
	case OpEqual:
		return actual == bound
	case OpNotEqual:
		return actual != bound
	default:
		return false
	}
}

// Threshold is one parsed pass/fail assertion over a run metric.
type Threshold struct {
	// Selector is the map key it came from, e.g. "http_req_duration{phase:main}".
	Selector   string
	Metric     string
	Tags       map[string]string
	Expression string

	Aggregation string
	Percentile  float64 // set when Aggregation is AggPercentile
	Operator    Operator
	Bound       float64
}

// Kind returns the metric kind of the threshold's metric.
func (t Threshold) Kind() MetricKind {
	return Metrics[t.Metric]
}

func (t Threshold) String() string {
	return t.Selector + ": " + t.Expression
}

var (
	selectorPattern   = regexp.MustCompile(`^([a-z_]+)(\{([^{}]*)\})?$`)
	expressionPattern = regexp.MustCompile(`^(avg|min|max|med|count|rate|value|p\(([0-9]+(?:\.[0-9]+)?)\))\s*(<=|>=|==|!=|<|>)\s*(-?[0-9]+(?:\.[0-9]+)?(?:[eE][-+]?[0-9]+)?)$`)
)

// ParseSelector splits "metric{k:v,k2:v2}" into a metric name and tag filter.
func ParseSelector(selector string) (string, map[string]string, error) {
	m := selectorPattern.FindStringSubmatch(strings.TrimSpace(selector))
	if m == nil {
		return "", nil, fmt.Errorf("malformed metric selector %q", selector)
	}
	name := m[1]
	if _, ok := Metrics[name]; !ok {
		return "", nil, fmt.Errorf("unknown metric %q", name)
	}
	if m[2] == "" {
		return name, nil, nil
	}

	tags := make(map[string]string)
	for _, pair := range strings.Split(m[3], ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !found || key == "" || value == "" {
			return "", nil, fmt.Errorf("malformed tag filter %q in %q", pair, selector)
		}
		tags[key] = value
	}
	return name, tags, nil
}

// ParseThreshold parses one expression such as "p(95)<200" for selector.
func ParseThreshold(selector, expression string) (Threshold, error) {
	metric, tags, err := ParseSelector(selector)
	if err != nil {
		return Threshold{}, err
	}

	expr := strings.TrimSpace(expression)
	m := expressionPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("malformed threshold %q on %s", expression, selector)
	}

	t := Threshold{
		Selector:    selector,
		Metric:      metric,
		Tags:        tags,
		Expression:  expr,
		Aggregation: m[1],
		Operator:    Operator(m[3]),
	}
	if m[2] != "" {
		t.Aggregation = AggPercentile
		t.Percentile, _ = strconv.ParseFloat(m[2], 64)
		if t.Percentile > 100 {
			return Threshold{}, fmt.Errorf("percentile %g out of range in %q", t.Percentile, expression)
		}
	}
	t.Bound, err = strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("bad bound in %q: %w", expression, err)
	}

	if !allowedAggs[t.Kind()][t.Aggregation] {
		return Threshold{}, fmt.Errorf("aggregation %q is not valid for %s metric %s", t.Aggregation, t.Kind(), metric)
	}
	return t, nil
}

// ParseThresholds parses a selector→expressions map. The result is
// ordered by selector, then by expression position.
func ParseThresholds(defs map[string][]string) ([]Threshold, error) {
	selectors := make([]string, 0, len(defs))
	for sel := range defs {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)

	var out []Threshold
	for _, sel := range selectors {
		for _, expr := range defs[sel] {
			t, err := ParseThreshold(sel, expr)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}
