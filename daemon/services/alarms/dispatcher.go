// Package alarms implements the AlarmSink external contract: a
// fire-and-forget notification dispatcher plus an in-memory history ring
// buffer for operator introspection.
package alarms

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nicholas-fedor/shoutrrr"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
)

// defaultHistoryCapacity bounds the in-memory alarm history ring buffer.
const defaultHistoryCapacity = 500

// Dispatcher is the default AlarmSink. It fans every AlarmMessage out
// over one or more shoutrrr service URLs (ntfy/discord/slack/webhook/etc)
// and keeps a bounded in-memory history for the recent-alarms endpoint.
// Dispatch never blocks the caller on a slow or failing channel: each
// send runs on its own goroutine.
type Dispatcher struct {
	channels []string

	mu      sync.Mutex
	history []dto.AlarmMessage
	cap     int
}

// NewDispatcher builds a Dispatcher that sends to every URL in channels.
// historyCapacity <= 0 uses defaultHistoryCapacity.
func NewDispatcher(channels []string, historyCapacity int) *Dispatcher {
	if historyCapacity <= 0 {
		historyCapacity = defaultHistoryCapacity
	}
	return &Dispatcher{
		channels: channels,
		cap:      historyCapacity,
		history:  make([]dto.AlarmMessage, 0, historyCapacity),
	}
}

// Dispatch implements analyzer.AlarmSink. It records alarm in history and
// sends it to every configured channel on its own goroutine.
func (d *Dispatcher) Dispatch(alarm dto.AlarmMessage) {
	d.addHistory(alarm)

	message := d.formatMessage(alarm)
	for _, channel := range d.channels {
		go func(channel string) {
			if err := shoutrrr.Send(channel, message); err != nil {
				logger.Error("Alarms: failed to dispatch to channel %s: %v", channelType(channel), err)
			}
		}(channel)
	}
}

// Recent returns up to n of the most recently dispatched alarms, newest
// last. n <= 0 returns the full retained history.
func (d *Dispatcher) Recent(n int) []dto.AlarmMessage {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n <= 0 || n > len(d.history) {
		n = len(d.history)
	}
	out := make([]dto.AlarmMessage, n)
	copy(out, d.history[len(d.history)-n:])
	return out
}

func (d *Dispatcher) addHistory(alarm dto.AlarmMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.history) >= d.cap {
		d.history = d.history[1:]
	}
	d.history = append(d.history, alarm)
}

func (d *Dispatcher) formatMessage(alarm dto.AlarmMessage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s: %s\n", strings.ToUpper(string(alarm.Level)), alarm.ApplicationName, alarm.Summary))
	if alarm.Detail != "" {
		sb.WriteString(alarm.Detail)
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Time: %s", alarm.RaisedAt.Format("2006-01-02 15:04:05")))
	if alarm.EventID != nil {
		sb.WriteString(fmt.Sprintf("\nEvent: %s", alarm.EventID.String()))
	}
	return sb.String()
}

func channelType(ch string) string {
	if before, _, ok := strings.Cut(ch, "://"); ok {
		return before
	}
	return "unknown"
}
