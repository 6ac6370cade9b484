package sim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gilchrisn/dtn-routing-service/pkg/models"
)

// ErrMalformedTrace wraps every trace parsing failure
var ErrMalformedTrace = errors.New("malformed trace")

// EventKind is the type of a trace event
type EventKind int

const (
	EventLinkUp EventKind = iota + 1
	EventLinkDown
	EventCreate
)

func (k EventKind) String() string {
	switch k {
	case EventLinkUp:
		return "up"
	case EventLinkDown:
		return "down"
	case EventCreate:
		return "create"
	default:
		return "unknown"
	}
}

// Event is one scheduled change of the simulated world
type Event struct {
	Time float64
	Kind EventKind
	A, B models.NodeID // link endpoints, or source and destination for EventCreate
	TTL  float64       // EventCreate only; 0 means Options.DefaultTTL
}

// ReadTrace parses a trace of whitespace separated lines:
//
//	<time> CONN <a> <b> up|down
//	<time> C <from> <to> [ttlSeconds]
//
// Blank lines and lines starting with # are ignored. Events are returned
// ordered by time, ties keeping file order.
func ReadTrace(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ev, err := parseEvent(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTrace, lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events, nil
}

// LoadTrace reads a trace file
func LoadTrace(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadTrace(file)
}

func parseEvent(fields []string) (Event, error) {
	if len(fields) < 4 {
		return Event{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}

	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || ts < 0 {
		return Event{}, fmt.Errorf("bad time %q", fields[0])
	}
	ev := Event{Time: ts, A: models.NodeID(fields[2]), B: models.NodeID(fields[3])}
	if ev.A == ev.B {
		return Event{}, fmt.Errorf("endpoints must differ: %s", ev.A)
	}

	switch fields[1] {
	case "CONN":
		if len(fields) != 5 {
			return Event{}, fmt.Errorf("CONN needs up|down")
		}
		switch strings.ToLower(fields[4]) {
		case "up":
			ev.Kind = EventLinkUp
		case "down":
			ev.Kind = EventLinkDown
		default:
			return Event{}, fmt.Errorf("bad link state %q", fields[4])
		}
	case "C":
		ev.Kind = EventCreate
		if len(fields) > 5 {
			return Event{}, fmt.Errorf("too many fields for C")
		}
		if len(fields) == 5 {
			ttl, err := strconv.ParseFloat(fields[4], 64)
			if err != nil || ttl <= 0 {
				return Event{}, fmt.Errorf("bad ttl %q", fields[4])
			}
			ev.TTL = ttl
		}
	default:
		return Event{}, fmt.Errorf("unknown event %q", fields[1])
	}
	return ev, nil
}
