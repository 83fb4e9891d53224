package analyzer

import (
	"math"

	"github.com/Eyali1001/harpoon/config"
	"github.com/Eyali1001/harpoon/models"
)

// offsetNames labels each whole-hour UTC offset with a representative zone.
// Best-effort only: an offset does not identify a single timezone.
var offsetNames = map[int]string{
	-12: "Etc/GMT+12",
	-11: "Pacific/Pago_Pago",
	-10: "Pacific/Honolulu",
	-9:  "America/Anchorage",
	-8:  "America/Los_Angeles",
	-7:  "America/Denver",
	-6:  "America/Chicago",
	-5:  "America/New_York",
	-4:  "America/Halifax",
	-3:  "America/Sao_Paulo",
	-2:  "Atlantic/South_Georgia",
	-1:  "Atlantic/Azores",
	0:   "Europe/London",
	1:   "Europe/Paris",
	2:   "Europe/Kyiv",
	3:   "Europe/Moscow",
	4:   "Asia/Dubai",
	5:   "Asia/Karachi",
	6:   "Asia/Dhaka",
	7:   "Asia/Bangkok",
	8:   "Asia/Shanghai",
	9:   "Asia/Tokyo",
	10:  "Australia/Sydney",
	11:  "Pacific/Noumea",
	12:  "Pacific/Auckland",
	13:  "Pacific/Tongatapu",
	14:  "Pacific/Kiritimati",
}

// InferTimezone estimates a trader's home timezone from when they trade.
//
// The activity center is a circular weighted mean over the hour-of-day
// histogram, so activity clustered around midnight UTC averages near hour 0
// instead of being pulled to noon. The UTC offset is whichever whole-hour
// offset in [-12, +14] places the center inside the configured waking window,
// breaking ties by distance to the window midpoint. All outputs are nil when
// the wallet has no trades.
func InferTimezone(trades []models.Trade, cfg config.AnalyticsConfig) models.TimezoneAnalysis {
	var tz models.TimezoneAnalysis

	for _, t := range trades {
		tz.HourlyHistogram[t.Timestamp.UTC().Hour()]++
		tz.TotalTrades++
	}
	if tz.TotalTrades == 0 {
		return tz
	}

	var sinSum, cosSum float64
	for hour, count := range tz.HourlyHistogram {
		angle := 2 * math.Pi * float64(hour) / 24
		sinSum += float64(count) * math.Sin(angle)
		cosSum += float64(count) * math.Cos(angle)
	}

	center := math.Atan2(sinSum, cosSum) / (2 * math.Pi) * 24
	center = math.Mod(center+24, 24)
	tz.ActivityCenterUTC = &center

	offset := inferOffset(center, cfg)
	tz.UTCOffset = &offset
	if name, ok := offsetNames[offset]; ok {
		tz.TimezoneName = &name
	}
	return tz
}

// inferOffset picks the whole-hour offset placing the activity center inside
// the waking window, closest to the window midpoint.
func inferOffset(centerUTC float64, cfg config.AnalyticsConfig) int {
	start := float64(cfg.WakingStartHour)
	end := float64(cfg.WakingEndHour)
	midpoint := (start + end) / 2

	best := 0
	bestDist := math.Inf(1)
	bestInWindow := false

	for offset := -12; offset <= 14; offset++ {
		local := math.Mod(centerUTC+float64(offset)+48, 24)
		inWindow := local >= start && local <= end

		dist := math.Abs(local - midpoint)
		if dist > 12 {
			dist = 24 - dist
		}

		if (inWindow && !bestInWindow) || (inWindow == bestInWindow && dist < bestDist) {
			best = offset
			bestDist = dist
			bestInWindow = inWindow
		}
	}
	return best
}
