package worklog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/worklog-cli/worklog/config"
)

// timeParser is an unbound datetime field used to coerce condition values
// and property inputs.
var timeParser = DateTime("when")

// entryStart reads the entry's start as a time, nil when unset.
func entryStart(e *Entity) (time.Time, bool) {
	t, ok := e.values["start"].(time.Time)
	return t, ok
}

// A time entry is running while it has a start but no stop. The negative
// duration convention mirrors the wire format: the duration of a running
// entry is the negated start timestamp, so that now + duration is the
// elapsed time.
func entryRunning(e *Entity) bool {
	_, hasStart := entryStart(e)
	return hasStart && e.values["stop"] == nil
}

func getDuration(ctx context.Context, e *Entity) (any, error) {
	start, ok := entryStart(e)
	if !ok {
		return nil, nil
	}
	if entryRunning(e) {
		return -start.Unix(), nil
	}
	stop, ok := e.values["stop"].(time.Time)
	if !ok {
		return nil, nil
	}
	return int64(stop.Sub(start) / time.Second), nil
}

// setDuration adjusts start/stop to produce the requested duration: a
// non-negative value stops the entry that many seconds after start, a
// negative value marks it running by clearing stop.
func setDuration(ctx context.Context, e *Entity, v any, init bool) (bool, error) {
	seconds, err := toInt64(v)
	if err != nil {
		return false, &TypeError{Field: "duration", Kind: "integer", Value: v}
	}
	before, _ := getDuration(ctx, e)

	if seconds < 0 {
		if init {
			delete(e.values, "stop")
		} else if e.values["stop"] != nil {
			if err := e.Set(ctx, "stop", nil); err != nil {
				return false, err
			}
		}
	} else {
		start, ok := entryStart(e)
		if !ok {
			return false, &ValidationError{Entity: "time_entry", Field: "duration", Reason: "cannot set duration without start"}
		}
		stop := start.Add(time.Duration(seconds) * time.Second)
		if init {
			e.values["stop"] = stop
		} else if err := e.Set(ctx, "stop", stop); err != nil {
			return false, err
		}
	}

	after, _ := getDuration(ctx, e)
	return before != after, nil
}

func getRunning(ctx context.Context, e *Entity) (any, error) {
	return entryRunning(e), nil
}

func formatClock(v any, s *Session) string {
	d, err := toInt64(v)
	if err != nil {
		return ""
	}
	if d < 0 {
		d = time.Now().Unix() + d
	}
	return fmt.Sprintf("%d:%02d:%02d", d/3600, d%3600/60, d%60)
}

// timeEntryInit establishes the running state for fresh entries: a start
// with neither stop nor duration means the entry is running, which the
// stop-less value map already encodes. It only validates consistency.
func timeEntryInit(ctx context.Context, e *Entity, raw map[string]any) error {
	if _, hasStart := entryStart(e); !hasStart {
		return nil
	}
	if _, hasStop := e.values["stop"].(time.Time); hasStop {
		start, _ := entryStart(e)
		stop := e.values["stop"].(time.Time)
		if stop.Before(start) {
			return &ValidationError{Entity: "time_entry", Field: "stop", Reason: "stop precedes start"}
		}
	}
	return nil
}

// timeEntryPrepareWire clears the duration on updates that touch start or
// stop, so the server recomputes it from the new bounds instead of trusting
// a stale value.
func timeEntryPrepareWire(ctx context.Context, e *Entity, wire map[string]any, update bool) {
	if update && (e.dirty["start"] || e.dirty["stop"]) {
		wire["duration"] = nil
	}
}

// timeEntryListURL lists under /me/time_entries and pushes start/stop range
// conditions into the query string, where the API filters natively. The
// consumed conditions are removed so they are not re-applied client-side.
func timeEntryListURL(ctx context.Context, sess *Session, conds Conditions) (string, error) {
	params := url.Values{}
	if v, ok := conds["start"]; ok {
		t, err := timeParser.Parse(v, sess)
		if err != nil {
			return "", err
		}
		params.Set("start_date", t.(time.Time).UTC().Format(time.RFC3339))
		delete(conds, "start")
	}
	if v, ok := conds["stop"]; ok {
		t, err := timeParser.Parse(v, sess)
		if err != nil {
			return "", err
		}
		params.Set("end_date", t.(time.Time).UTC().Format(time.RFC3339))
		delete(conds, "stop")
	}
	path := "/me/time_entries"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return path, nil
}

func timeEntryDetailURL(s *Session, id int64) string {
	return fmt.Sprintf("/me/time_entries/%d", id)
}

func sortByStart(entities []*Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		si, iok := entities[i].values["start"].(time.Time)
		sj, jok := entities[j].values["start"].(time.Time)
		if !iok || !jok {
			return jok
		}
		return si.Before(sj)
	})
}

// TimeEntry is a tracked interval of work. Duration is derived from start
// and stop; a running entry has no stop and reports the negated start
// timestamp as its duration.
var TimeEntry = MustRegister(SchemaSpec{
	Name:    "time_entry",
	Extends: workspacedEntity,
	Fields: []Field{
		String("description"),
		Relation("project", Project, "pid"),
		Relation("task", Task, "tid", WithPremium()),
		Boolean("billable", WithPremium(), WithDefault(false)),
		DateTime("start", WithRequired()),
		DateTime("stop"),
		Property("duration", getDuration, setDuration).WithFormatter(formatClock),
		Property("is_running", getRunning, nil).omitFromWire(),
		String("created_with", WithRequired(), WithDefault("worklog"), WithWriteOnly()),
		Tags("tags"),
	},
	Init:        timeEntryInit,
	PrepareWire: timeEntryPrepareWire,
	ListURL:     timeEntryListURL,
	DetailURL:   timeEntryDetailURL,
	Sort:        sortByStart,
})

// TimeEntrySet adds the running-entry operations on top of the plain query
// set.
type TimeEntrySet struct {
	*Set
}

// TimeEntries is the query manager for TimeEntry.
var TimeEntries = &TimeEntrySet{Set: TimeEntry.Objects()}

// Current fetches the running entry, nil when nothing is tracked.
func (t *TimeEntrySet) Current(ctx context.Context, sess *Session) (*Entity, error) {
	raw, err := sess.Transport().Request(ctx, http.MethodGet, "/me/time_entries/current", nil)
	if err != nil {
		return nil, err
	}
	record, err := unwrapData(raw)
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, nil
	}
	return t.deserialize(ctx, sess, record)
}

// Start creates and saves a running entry beginning now, unless extra
// carries an explicit start.
func (t *TimeEntrySet) Start(ctx context.Context, sess *Session, description string, extra map[string]any) (*Entity, error) {
	raw := map[string]any{}
	for k, v := range extra {
		raw[k] = v
	}
	if description != "" {
		raw["description"] = description
	}
	if _, ok := raw["start"]; !ok {
		raw["start"] = time.Now()
	}
	entry, err := t.schema.New(ctx, sess, raw)
	if err != nil {
		return nil, err
	}
	if err := entry.Save(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// Stop stops the running entry at the given time (now when zero) and saves
// it. Without a running entry it returns an error.
func (t *TimeEntrySet) Stop(ctx context.Context, sess *Session, at time.Time) (*Entity, error) {
	entry, err := t.Current(ctx, sess)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("no time entry is running")
	}
	if at.IsZero() {
		at = time.Now()
	}
	if err := entry.Set(ctx, "stop", at); err != nil {
		return nil, err
	}
	if err := entry.Save(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// Continue resumes tracking the source's work. By default it starts a
// fresh running entry copying the source's workspace, description, project,
// task, billable flag and tags; with continue_creates disabled it restarts
// the source entry in place.
func (t *TimeEntrySet) Continue(ctx context.Context, sess *Session, source *Entity) (*Entity, error) {
	if source == nil {
		return nil, fmt.Errorf("no time entry to continue")
	}
	if source.schema != t.schema {
		return nil, fmt.Errorf("cannot continue a %s", source.schema.name)
	}
	if sess.Config() != nil && !sess.Config().Bool(config.KeyContinueCreates) {
		if err := source.Set(ctx, "stop", nil); err != nil {
			return nil, err
		}
		if err := source.Set(ctx, "start", time.Now()); err != nil {
			return nil, err
		}
		if err := source.Save(ctx); err != nil {
			return nil, err
		}
		return source, nil
	}
	raw := map[string]any{"start": time.Now()}
	if desc, ok := source.values["description"].(string); ok {
		raw["description"] = desc
	}
	for _, wire := range []string{"wid", "pid", "tid"} {
		if v := source.values[wire]; v != nil {
			raw[wire] = v
		}
	}
	if tags, ok := source.values["tags"].([]string); ok && len(tags) > 0 {
		raw["tags"] = tags
	}
	if billable, ok := source.values["billable"].(bool); ok && billable {
		raw["billable"] = billable
	}
	entry, err := t.schema.New(ctx, sess, raw)
	if err != nil {
		return nil, err
	}
	if err := entry.Save(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}
