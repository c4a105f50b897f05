package app

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/tickship/tickship/internal/domain"
	"github.com/tickship/tickship/internal/kipc"
	"github.com/tickship/tickship/internal/metrics"
	"github.com/tickship/tickship/pkg/log"
)

// AsyncPublisher accepts RPC call values for fire-and-forget delivery.
// Implemented by Client; errors never surface to the event pipeline.
type AsyncPublisher interface {
	Publish(v kipc.Value)
}

// Publisher turns host events into tickerplant update calls: it applies the
// entity filter, splits the raw state into a numeric value and a string
// fallback, wraps both in the event envelope, and hands the call to the
// reconnecting client.
type Publisher struct {
	filter *Filter
	client AsyncPublisher
	table  string
	updF   string
	logger log.Logger

	now func() time.Time
}

// NewPublisher wires a publisher to the given client. table is the host tag
// the tickerplant routes on; updF is the update function invoked remotely.
func NewPublisher(filter *Filter, client AsyncPublisher, table, updF string, logger log.Logger) *Publisher {
	return &Publisher{
		filter: filter,
		client: client,
		table:  table,
		updF:   updF,
		logger: logger,
		now:    time.Now,
	}
}

// OnStateChange forwards one state change. Filtered entities are dropped
// silently with no I/O.
func (p *Publisher) OnStateChange(ev domain.StateChange) {
	metrics.EventsReceived.WithLabelValues("state_changed").Inc()
	if !p.filter.Match(ev.EntityID()) {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonFiltered).Inc()
		return
	}
	p.logger.Debug("publishing state change",
		log.String("entity_id", ev.EntityID()),
		log.String("value", ev.RawValue),
	)
	env := p.envelope(ev.Domain, ev.ObjectID, attributesValue(ev.Attributes), ev.RawValue)
	p.client.Publish(p.call(env))
}

// OnLogbookEntry forwards one logbook entry through the same pipeline with
// the domain fixed to the literal "event". Logbook entries carry no state, so
// value and svalue are the fixed sentinels -1.1 and " "; the message travels
// inside the attribute dictionary.
func (p *Publisher) OnLogbookEntry(ev domain.LogbookEntry) {
	metrics.EventsReceived.WithLabelValues("logbook_entry").Inc()
	if ev.EntityID != "" && !p.filter.Match(ev.EntityID) {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonFiltered).Inc()
		return
	}
	attrs := kipc.NewDict().
		Set(kipc.Symbol("title"), kipc.String(ev.Name)).
		Set(kipc.Symbol("text"), kipc.String(ev.Message)).
		Set(kipc.Symbol("entity"), kipc.String(ev.EntityID)).
		Set(kipc.Symbol("domain"), kipc.String(ev.Domain))
	env := p.envelopeWith("event", ev.EntityID, *attrs, kipc.Float(-1.1), " ")
	p.client.Publish(p.call(env))
	p.logger.Debug("published logbook entry", log.String("entity_id", ev.EntityID))
}

// envelope builds {time, host, event{domain, entity_id, attributes, value,
// svalue}}. value is numeric when the raw state parses as a number and the
// generic null otherwise; svalue always carries the string form.
func (p *Publisher) envelope(eventDomain, entityID string, attrs kipc.Dict, raw string) kipc.Dict {
	var value kipc.Value = kipc.Null{}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		value = kipc.Float(f)
	}
	return p.envelopeWith(eventDomain, entityID, attrs, value, raw)
}

func (p *Publisher) envelopeWith(eventDomain, entityID string, attrs kipc.Dict, value kipc.Value, svalue string) kipc.Dict {
	event := kipc.NewDict().
		Set(kipc.Symbol("domain"), kipc.Symbol(eventDomain)).
		Set(kipc.Symbol("entity_id"), kipc.String(entityID)).
		Set(kipc.Symbol("attributes"), attrs).
		Set(kipc.Symbol("value"), value).
		Set(kipc.Symbol("svalue"), kipc.String(svalue))

	env := kipc.NewDict().
		Set(kipc.Symbol("time"), kipc.Float(unixSeconds(p.now()))).
		Set(kipc.Symbol("host"), kipc.Symbol(p.table)).
		Set(kipc.Symbol("event"), *event)
	return *env
}

// call wraps an envelope in the remote-procedure-call tuple.
func (p *Publisher) call(env kipc.Dict) kipc.Value {
	return kipc.List{kipc.Symbol(p.updF), env}
}

// StartupCall builds the synthetic event published first on every successful
// connect so downstream consumers can detect reconnection boundaries.
func StartupCall(table, updF string, now func() time.Time) kipc.Value {
	attrs := kipc.NewDict().
		Set(kipc.Symbol("integration"), kipc.String("tickship")).
		Set(kipc.Symbol("message"), kipc.String("kdb+ bridge connected"))
	event := kipc.NewDict().
		Set(kipc.Symbol("domain"), kipc.Symbol("tickship")).
		Set(kipc.Symbol("entity_id"), kipc.String("kdb.connect")).
		Set(kipc.Symbol("attributes"), *attrs).
		Set(kipc.Symbol("value"), kipc.Float(-1.1)).
		Set(kipc.Symbol("svalue"), kipc.String(" "))
	env := kipc.NewDict().
		Set(kipc.Symbol("time"), kipc.Float(unixSeconds(now()))).
		Set(kipc.Symbol("host"), kipc.Symbol(table)).
		Set(kipc.Symbol("event"), *event)
	return kipc.List{kipc.Symbol(updF), *env}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// attributesValue converts a host attribute map into a dictionary. Keys are
// emitted in sorted order so the same attributes always serialize to the same
// bytes. Attribute values may be nested atoms, sequences, or null; anything
// else falls back to its string form.
func attributesValue(attrs map[string]any) kipc.Dict {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := kipc.NewDict()
	for _, k := range keys {
		d.Set(kipc.Symbol(k), scalarValue(attrs[k]))
	}
	return *d
}

func scalarValue(v any) kipc.Value {
	switch x := v.(type) {
	case nil:
		return kipc.Null{}
	case bool:
		return kipc.Bool(x)
	case int:
		return kipc.Long(x)
	case int64:
		return kipc.Long(x)
	case float64:
		return kipc.Float(x)
	case string:
		return kipc.String(x)
	case []any:
		out := make(kipc.List, 0, len(x))
		for _, el := range x {
			out = append(out, scalarValue(el))
		}
		return out
	case map[string]any:
		return attributesValue(x)
	default:
		return kipc.String(fmt.Sprint(x))
	}
}
