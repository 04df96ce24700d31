package booking

// GenerateSlots expands the entries matching date's weekday into 30-minute
// slots. Entries with end <= start are skipped. Slots are ascending within an
// entry; entries keep their input order and are concatenated, not merged.
func GenerateSlots(date Date, entries []*ScheduleEntry) []Slot {
	day := date.DayOfWeek()
	slots := []Slot{}
	for _, e := range entries {
		if e == nil || e.DayOfWeek != day {
			continue
		}
		if e.EndTime <= e.StartTime {
			continue
		}
		for t := e.StartTime; t < e.EndTime; t = t.Add(SlotDuration) {
			slots = append(slots, Slot{
				Time:            t,
				ScheduleID:      e.ID,
				HospitalName:    e.HospitalName,
				ConsultationFee: e.ConsultationFee,
			})
		}
	}
	return slots
}

// FilterAvailable drops slots whose time is already booked, keeping order.
func FilterAvailable(slots []Slot, booked []TimeOfDay) []Slot {
	taken := make(map[TimeOfDay]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if _, ok := taken[s.Time]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}
