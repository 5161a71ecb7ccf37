package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "calplan/internal/log"
	"calplan/internal/model"
)

// propPerson carries one EventRecord.People entry per property.
const propPerson = ical.ComponentProperty("X-CALPLAN-PERSON")

// ParseEvents parses an ICS payload into event records. Floating and
// date-only values are interpreted in loc.
//
//   - All-day events are detected by VALUE=DATE or a value without 'T'.
//   - RRULE is not expanded; such events surface once, at DTSTART.
//   - VEVENTs that fail to parse are logged and skipped.
func ParseEvents(src Source, body []byte, loc *time.Location) ([]model.EventRecord, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", appLog.RedactURL(src.URL))
		return nil, err
	}

	events := make([]model.EventRecord, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "uid", comp.Id())
			continue
		}
		if p := comp.GetProperty(ical.ComponentPropertyRrule); p != nil {
			appLog.Debug("ics recurrence not expanded", "id", src.ID, "uid", ev.ID, "rrule", p.Value)
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.EventRecord, error) {
	var out model.EventRecord

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Notes = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		first, _, _ := strings.Cut(p.Value, ",")
		out.Category = strings.TrimSpace(first)
	}
	if p := ve.GetProperty(ical.ComponentPropertyPriority); p != nil {
		out.Priority = clampPriority(p.Value)
	}
	out.Availability = model.AvailabilityBusy
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, string(ical.TransparencyTransparent)) {
		out.Availability = model.AvailabilityFree
	}
	for _, p := range ve.GetProperties(propPerson) {
		out.People = append(out.People, p.Value)
	}
	for _, alarm := range ve.Alarms() {
		if p := alarm.GetProperty(ical.ComponentPropertyTrigger); p != nil && p.Value != "" {
			out.Alert = p.Value
			break
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(dtStart, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := propTime(dtEnd, loc)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	} else if allDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}
	if out.End.Before(out.Start) {
		out.End = out.Start
	}

	out.Normalize()
	return out, nil
}

// propTime resolves a DTSTART/DTEND property. TZID wins, a trailing Z means
// UTC, anything else is floating and read in loc.
func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	allDay := false
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	val := strings.TrimSpace(p.Value)
	if !strings.Contains(val, "T") {
		allDay = true
	}

	in := loc
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 && !allDay {
		tz, err := time.LoadLocation(tzs[0])
		if err != nil {
			return time.Time{}, false, err
		}
		in = tz
	}
	t, err := parseICSTime(val, in)
	if err != nil {
		return time.Time{}, false, err
	}
	if allDay {
		y, m, d := t.Date()
		t = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return t, allDay, nil
}

// parseICSTime parses a basic ICS date/date-time string. Values without a
// zone designator are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		if strings.Contains(v, "T") {
			return time.Parse("20060102T150405Z", v)
		}
		return time.Parse("20060102Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}

func clampPriority(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return model.DefaultPriority
	}
	if n > 5 {
		return 5
	}
	return n
}
