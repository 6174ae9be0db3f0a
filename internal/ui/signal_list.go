package ui

import (
	"fmt"
	"strings"

	"signal-hud.klederson.com/internal/signal"
)

// Entry is one emitter in the signal list. Reading is the representative
// reading and Observers the number of anchors that heard it this cycle.
type Entry struct {
	Reading   signal.SignalReading
	Observers int
}

// RenderSignalList renders the scrollable signal list with a cursor. The
// title stays fixed at the top; only the entries scroll.
func RenderSignalList(entries []Entry, width, height, cursor int, tracked signal.Tracked) string {
	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	title := StylePanelTitle.Render(fmt.Sprintf("SIGNALS [%d]", len(entries)))
	separator := StyleRule.Render(strings.Repeat("-", innerW))
	header := []string{title, separator}

	innerH := height - 2
	if innerH < len(header)+1 {
		innerH = len(header) + 1
	}
	space := innerH - len(header)

	var body []string
	if len(entries) == 0 {
		body = append(body, "", StyleHelp.Render(" No signals..."), StyleHelp.Render(" Waiting for scan"))
	} else {
		const linesPerEntry = 4 // 3 content + 1 blank
		maxVisible := space / linesPerEntry
		if maxVisible < 1 {
			maxVisible = 1
		}

		// keep the cursor in view
		start := 0
		if cursor >= maxVisible {
			start = cursor - maxVisible + 1
		}
		for i := start; i < len(entries) && len(body) < space; i++ {
			e := entries[i]
			isTracked := tracked.Active && e.Reading.Source == tracked.Source &&
				e.Reading.Identifier == tracked.Identifier
			body = append(body, renderEntry(e, innerW, i == cursor, isTracked)...)
		}
	}
	if len(body) > space {
		body = body[:space]
	}

	all := append(header, body...)
	content := strings.Join(all, "\n")
	rendered := StylePanelBorder.Width(width - 2).Height(innerH).Render(content)
	return clampLines(rendered, height)
}

func entryLines(e Entry, maxW int, isCursor, isTracked bool) (string, string, string) {
	r := e.Reading

	cursor := "  "
	if isCursor {
		cursor = ">>"
	}
	mark := " "
	if isTracked {
		mark = "!"
	}

	name := r.DisplayName()
	if nameMax := maxW - 14; nameMax > 3 {
		name = truncRunes(name, nameMax)
	}

	id := r.Identifier
	if e.Observers > 1 {
		id = fmt.Sprintf("%s  x%d", id, e.Observers)
	} else if r.Observer != "" {
		id = fmt.Sprintf("%s  via %s", id, r.Observer)
	}

	dist := "dist ?"
	if r.Distance != nil {
		dist = fmt.Sprintf("~%.1fm", *r.Distance)
	}
	fix := "no fix"
	if r.Estimated != nil {
		fix = r.Estimated.String()
	}

	line1 := fmt.Sprintf("%s%s [%s] %s", cursor, mark, r.Source.Tag(), name)
	line2 := fmt.Sprintf("       %s", id)
	line3 := fmt.Sprintf("       %ddBm  %s  %s", r.RSSI, dist, fix)
	return truncRaw(line1, maxW), truncRaw(line2, maxW), truncRaw(line3, maxW)
}

func renderEntry(e Entry, maxW int, isCursor, isTracked bool) []string {
	l1, l2, l3 := entryLines(e, maxW, isCursor, isTracked)
	if isCursor {
		return []string{StyleCursorRow.Render(l1), StyleCursorRow.Render(l2), StyleCursorRow.Render(l3), ""}
	}

	r := e.Reading
	mark := " "
	if isTracked {
		mark = StyleTrackedMarker.Render("!")
	}
	tag := SourceStyle(string(r.Source)).Render("[" + r.Source.Tag() + "]")
	name := r.DisplayName()
	if nameMax := maxW - 14; nameMax > 3 {
		name = truncRunes(name, nameMax)
	}

	line1 := fmt.Sprintf("  %s %s %s", mark, tag, StyleSignalName.Render(name))
	line2 := StyleSignalID.Render(strings.TrimRight(l2, " "))
	line3 := StyleSignalRSSI.Render(strings.TrimRight(l3, " "))
	return []string{line1, line2, line3, ""}
}
