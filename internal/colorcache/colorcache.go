// Package colorcache assigns a stable terminal color per package name, so a
// task's interleaved log lines stay visually grouped across a run (spec
// §4.H.3 "output-logs").
package colorcache

import (
	"sync"

	"github.com/fatih/color"
)

type colorFn = func(format string, a ...interface{}) string

func terminalColors() []colorFn {
	return []colorFn{color.CyanString, color.MagentaString, color.GreenString, color.YellowString, color.BlueString}
}

// Cache hands out a consistent color per key for the lifetime of a run.
type Cache struct {
	mu     sync.Mutex
	index  int
	colors []colorFn
	cache  map[string]colorFn
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{colors: terminalColors(), cache: map[string]colorFn{}}
}

func (c *Cache) colorFor(key string) colorFn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn, ok := c.cache[key]; ok {
		return fn
	}
	fn := c.colors[c.index%len(c.colors)]
	c.index++
	c.cache[key] = fn
	return fn
}

// Prefix renders prefix in key's assigned color, e.g. for a log line like
// "app:build: ".
func (c *Cache) Prefix(key, prefix string) string {
	return c.colorFor(key)("%s: ", prefix)
}
