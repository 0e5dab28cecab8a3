package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/bus"
)

// eventPrinter writes bus events one per line.
type eventPrinter struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

// timeLayout is used for event timestamps.
const timeLayout = "15:04:05.000"

func (p *eventPrinter) print(ev bus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := ev.(type) {
	case bus.EventDecoded:
		state, _ := json.Marshal(eltako.StateMap(e.Value))
		fmt.Fprintf(p.w, "%s decoded    %s %-12s %s %s\n",
			e.Time.Format(timeLayout), e.Entry.Address, e.Entry.Key(), e.Entry.EEP, state)
	case bus.EventUnresolved:
		line := fmt.Sprintf("%s unresolved %s", e.Time.Format(timeLayout), e.Telegram)
		if e.Err != nil {
			line += " (" + e.Err.Error() + ")"
		}
		fmt.Fprintln(p.w, line)
	case bus.EventSkipped:
		fmt.Fprintf(p.w, "%s skipped    % X (%v)\n", e.Time.Format(timeLayout), e.Raw, e.Err)
	case bus.EventSessionState:
		// Not a telegram, so not counted.
		if e.Err != nil {
			fmt.Fprintf(p.w, "%s session    %s: %v\n", e.Time.Format(timeLayout), e.State, e.Err)
		} else {
			fmt.Fprintf(p.w, "%s session    %s\n", e.Time.Format(timeLayout), e.State)
		}
		return
	}
	p.n++
}

// count returns the number of telegram events printed.
func (p *eventPrinter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
