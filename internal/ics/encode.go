package ics

import (
	"sort"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"calplan/internal/model"
)

const productID = "-//calplan//calplan 0.1//EN"

// Encode serializes records as one VCALENDAR. All-day dates are written in loc.
func Encode(records []model.EventRecord, loc *time.Location, stamp time.Time) []byte {
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	sorted := make([]model.EventRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].ID < sorted[j].ID
	})

	for _, rec := range sorted {
		writeVEvent(cal.AddEvent(rec.ID), rec, loc, stamp)
	}
	return []byte(cal.Serialize())
}

func writeVEvent(ve *ical.VEvent, rec model.EventRecord, loc *time.Location, stamp time.Time) {
	ve.SetDtStampTime(stamp)
	ve.SetSummary(rec.Title)

	if rec.AllDay {
		ve.SetAllDayStartAt(rec.Start.In(loc))
		end := rec.End.In(loc)
		if !end.After(rec.Start) {
			end = rec.Start.In(loc).AddDate(0, 0, 1)
		}
		ve.SetAllDayEndAt(end)
	} else {
		ve.SetStartAt(rec.Start)
		ve.SetEndAt(rec.End)
	}

	if rec.Notes != "" {
		ve.SetDescription(rec.Notes)
	}
	if rec.Location != "" {
		ve.SetLocation(rec.Location)
	}
	if rec.Category != "" {
		ve.AddCategory(rec.Category)
	}
	if rec.Priority != 0 {
		ve.SetProperty(ical.ComponentPropertyPriority, strconv.Itoa(rec.Priority))
	}
	if rec.Availability == model.AvailabilityFree {
		ve.SetTimeTransparency(ical.TransparencyTransparent)
	} else {
		ve.SetTimeTransparency(ical.TransparencyOpaque)
	}
	for _, p := range rec.People {
		ve.AddProperty(propPerson, p)
	}
	if rec.Alert != "" {
		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(rec.Alert)
		alarm.SetProperty(ical.ComponentPropertyDescription, rec.Title)
	}
}
