package storage

import "sort"

// PeriodSnapshot carries the effective values frozen into a HostnameUsage at
// creation. Changing configuration mid-period never alters an existing record.
type PeriodSnapshot struct {
	LimitSeconds int
	ResetTime    string
}

// EnsurePeriod returns the HostnameUsage for (date, hostname), lazily creating
// the DailyUsage entry and the per-hostname record on first visit of the
// period. Creation enforces the rolling cap and date-ascending order; existing
// records are returned untouched, so the limit/reset snapshot is write-once.
//
// The returned pointer aims into the log; callers hold it only within a single
// serialized read-modify-write operation.
func EnsurePeriod(log *UsageLog, date, hostname string, snap PeriodSnapshot) *HostnameUsage {
	day := log.Day(date)
	if day == nil {
		*log = append(*log, DailyUsage{Date: date})
		sort.Slice(*log, func(i, j int) bool { return (*log)[i].Date < (*log)[j].Date })
		if len(*log) > MaxUsageLogDays {
			*log = (*log)[len(*log)-MaxUsageLogDays:]
		}
		day = log.Day(date)
		if day == nil {
			// The new date was older than all retained entries and got evicted.
			return nil
		}
	}

	if usage := day.Usage(hostname); usage != nil {
		return usage
	}

	day.Hostnames = append(day.Hostnames, HostnameUsage{
		Hostname:      hostname,
		Sessions:      []Session{},
		LimitSeconds:  snap.LimitSeconds,
		ResetTime:     snap.ResetTime,
		Notifications: make(map[string]bool),
	})
	return &day.Hostnames[len(day.Hostnames)-1]
}
