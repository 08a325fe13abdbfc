package utils

import (
	"github.com/modern-go/gls"
	"github.com/sirupsen/logrus"
)

// EntityHook tags every log entry emitted inside a sync cycle with the
// entity import key bound to the current goroutine.
type EntityHook struct {
	Field  string
	levels []logrus.Level
}

func (hook *EntityHook) Levels() []logrus.Level {
	return hook.levels
}

func (hook *EntityHook) Fire(entry *logrus.Entry) error {
	entityKey := gls.Get(hook.Field)
	if entityKey != nil {
		entry.Data[hook.Field] = entityKey
	}
	return nil
}

func NewEntityHook(levels ...logrus.Level) *EntityHook {
	hook := EntityHook{
		Field:  "entity",
		levels: levels,
	}
	if len(hook.levels) == 0 {
		hook.levels = logrus.AllLevels
	}

	return &hook
}

// WithEntityLog runs fn in a goroutine-local scope where log entries carry
// the entity import key.
func WithEntityLog(importKey string, fn func()) {
	gls.WithGls(func() {
		gls.Set("entity", importKey)
		fn()
	})()
}
