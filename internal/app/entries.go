package app

import (
	"signal-hud.klederson.com/internal/signal"
	"signal-hud.klederson.com/internal/ui"
)

// BuildEntries folds the per-observer readings of a snapshot into one list
// entry per emitter, in first-seen order. The representative reading is the
// first one carrying an estimated position, or else the first one seen.
func BuildEntries(readings []signal.SignalReading) []ui.Entry {
	type key struct {
		src signal.SourceType
		id  string
	}
	index := make(map[key]int)
	var out []ui.Entry
	for _, r := range readings {
		k := key{r.Source, r.Identifier}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, ui.Entry{Reading: r, Observers: 1})
			continue
		}
		out[i].Observers++
		if out[i].Reading.Estimated == nil && r.Estimated != nil {
			out[i].Reading = r
		}
	}
	return out
}
