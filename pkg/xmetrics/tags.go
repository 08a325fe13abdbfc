package xmetrics

type IMetricsTag interface {
	Tag() []string
}

type metricsTag struct {
	tags []string
}

// sync metrics, per entity import key
type syncMetrics struct {
	metricsTag
	importKey string
}

func SyncMetrics(importKey string) *syncMetrics {
	return &syncMetrics{
		metricsTag: metricsTag{[]string{"sync"}},
		importKey:  importKey,
	}
}

func (s *syncMetrics) Tag() []string {
	s.tags = append(s.tags, s.importKey)
	return s.tags
}

func (s *syncMetrics) Queue() IMetricsTag {
	s.tags = append(s.tags, "queue")
	return s
}

func (s *syncMetrics) RegisterOperations(operation string) IMetricsTag {
	s.tags = append(s.tags, "registerOperations", operation)
	return s
}

func (s *syncMetrics) Operations() IMetricsTag {
	s.tags = append(s.tags, "operations")
	return s
}

func (s *syncMetrics) ImportRows() IMetricsTag {
	s.tags = append(s.tags, "importRows")
	return s
}

func (s *syncMetrics) Step(name string) IMetricsTag {
	s.tags = append(s.tags, "steps", name)
	return s
}

func (s *syncMetrics) Total() IMetricsTag {
	s.tags = append(s.tags, "total")
	return s
}

// lock metrics, per entity import key
type lockMetrics struct {
	metricsTag
	importKey string
}

func LockMetrics(importKey string) *lockMetrics {
	return &lockMetrics{
		metricsTag: metricsTag{[]string{"lock"}},
		importKey:  importKey,
	}
}

func (l *lockMetrics) Tag() []string {
	l.tags = append(l.tags, l.importKey)
	return l.tags
}

func (l *lockMetrics) Timeout() IMetricsTag {
	l.tags = append(l.tags, "timeout")
	return l
}

func (l *lockMetrics) HardRelease() IMetricsTag {
	l.tags = append(l.tags, "hardRelease")
	return l
}

// error metrics
type errorMetrics struct {
	metricsTag
}

func ErrorMetrics() *errorMetrics {
	return &errorMetrics{
		metricsTag: metricsTag{[]string{"error"}},
	}
}

func (e *errorMetrics) Tag() []string {
	return e.tags
}

func (e *errorMetrics) Category(name string) IMetricsTag {
	e.tags = append(e.tags, name)
	return e
}
