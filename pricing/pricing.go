// Package pricing computes booking prices from a tiered rate schedule.
package pricing

import (
	"math"
	"time"

	"parkhive-bend/apperr"
	"parkhive-bend/models"
)

// Price computes the amount owed for the half-open interval [start, end)
// under the given schedule. Tier selection is greedy largest-unit-first:
// whole months if a monthly rate is set, else whole weeks, else days capped
// at the weekly rate, else hours capped at the daily rate. A zero rate marks
// a tier unavailable and the evaluation falls through to the next smaller
// one. Intervals shorter than one hour bill a full hour.
func Price(start, end time.Time, schedule models.RateSchedule) (float64, error) {
	if !start.Before(end) {
		return 0, apperr.New(apperr.Validation, "interval start must be before end")
	}
	if schedule.HourlyRate < 0 || schedule.DailyRate < 0 || schedule.WeeklyRate < 0 || schedule.MonthlyRate < 0 {
		return 0, apperr.New(apperr.Validation, "rate schedule has a negative rate")
	}

	hours := int64(math.Ceil(end.Sub(start).Hours()))
	if hours < 1 {
		hours = 1
	}
	days := hours / 24

	if days > 0 {
		if schedule.MonthlyRate > 0 {
			if months := days / 30; months > 0 {
				return checked(float64(months) * schedule.MonthlyRate)
			}
		}
		if schedule.WeeklyRate > 0 {
			if weeks := days / 7; weeks > 0 {
				return checked(float64(weeks) * schedule.WeeklyRate)
			}
		}
		if schedule.DailyRate > 0 {
			price := float64(days) * schedule.DailyRate
			if schedule.WeeklyRate > 0 && schedule.WeeklyRate < price {
				price = schedule.WeeklyRate
			}
			return checked(price)
		}
		// no day-scale tier available, bill the full duration hourly
	}

	if schedule.HourlyRate > 0 {
		price := float64(hours) * schedule.HourlyRate
		if schedule.DailyRate > 0 && schedule.DailyRate < price {
			price = schedule.DailyRate
		}
		return checked(price)
	}
	if schedule.DailyRate > 0 {
		// sub-day stay with no hourly tier bills one day
		return checked(schedule.DailyRate)
	}

	return 0, apperr.New(apperr.Validation, "rate schedule has no usable tier for this duration")
}

func checked(price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, apperr.New(apperr.Invariant, "computed price is not a valid amount")
	}
	return price, nil
}
