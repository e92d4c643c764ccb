package domain

import "github.com/shopspring/decimal"

// RatingAggregate is the denormalized rating state carried by a target
// entity. Total is the sum proxy (avg * count) kept in fixed-point so the
// average can be maintained incrementally without recomputing from rows.
type RatingAggregate struct {
	Total decimal.Decimal
	Avg   decimal.Decimal
	Count int
}

// ZeroRating returns the empty aggregate.
func ZeroRating() RatingAggregate {
	return RatingAggregate{Total: decimal.Zero, Avg: decimal.Zero, Count: 0}
}

// normalize derives Avg from Total/Count, resetting to zero when no reviews
// remain. All intermediate arithmetic stays in decimal; no rounding is
// applied here.
func (a RatingAggregate) normalize() RatingAggregate {
	if a.Count <= 0 {
		return ZeroRating()
	}
	a.Avg = a.Total.Div(decimal.NewFromInt(int64(a.Count)))
	return a
}

// OnInsert returns the aggregate after adding a new rating.
func (a RatingAggregate) OnInsert(rating int) RatingAggregate {
	a.Total = a.Total.Add(decimal.NewFromInt(int64(rating)))
	a.Count++
	return a.normalize()
}

// OnUpdate returns the aggregate after a rating changed from oldRating to
// newRating. The count is unchanged.
func (a RatingAggregate) OnUpdate(oldRating, newRating int) RatingAggregate {
	if oldRating == newRating {
		return a
	}
	a.Total = a.Total.Sub(decimal.NewFromInt(int64(oldRating))).Add(decimal.NewFromInt(int64(newRating)))
	return a.normalize()
}

// OnDelete returns the aggregate after removing a rating. Removing the last
// review resets the aggregate to (0, 0) exactly.
func (a RatingAggregate) OnDelete(rating int) RatingAggregate {
	if a.Count <= 1 {
		return ZeroRating()
	}
	a.Total = a.Total.Sub(decimal.NewFromInt(int64(rating)))
	a.Count--
	return a.normalize()
}
