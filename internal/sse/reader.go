// Package sse reads and writes the server-sent-event wire format.
package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrStreamClosed is returned by Read when the server ends the stream.
var ErrStreamClosed = errors.New("event stream closed by server")

// DefaultEvent is the name given to events that carry no event: field.
const DefaultEvent = "message"

const maxLine = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Name  string
	Data  string
	ID    string
	Retry time.Duration
}

// Handler is invoked once per dispatched event. Returning an error stops Read.
type Handler func(Event) error

// Read parses r as an event stream and calls fn for every event.
//
// Read returns ctx.Err() after cancellation, the handler's error if it
// returned one, the reader's error on a transport failure, and
// ErrStreamClosed when r reaches EOF.
func Read(ctx context.Context, r io.Reader, fn Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)

	var (
		pending Event
		data    strings.Builder
		hasData bool
		lastID  string
	)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			if !hasData {
				pending = Event{}
				continue
			}
			ev := pending
			ev.Data = data.String()
			ev.ID = lastID
			if ev.Name == "" {
				ev.Name = DefaultEvent
			}
			pending = Event{}
			data.Reset()
			hasData = false

			if err := fn(ev); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			pending.Name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				pending.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return ErrStreamClosed
}
