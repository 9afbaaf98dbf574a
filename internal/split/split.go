// Package split computes the three-way revenue split of a stay and the
// refund tier of a guest cancellation. All amounts are minor currency units.
package split

import "time"

// Basis points of the accommodation amount.
const (
	platformCommissionBP = 300  // 3% of accommodation goes to the platform
	mainTenantBP         = 5820 // 0.97 * 60%
	proprietorBP         = 3880 // 0.97 * 40%
	fullBP               = 10000
)

// Refund rates in percent.
const (
	RefundFull = 100
	RefundHalf = 50
	RefundNone = 0
)

// Default deadlines when a listing has none configured, counted back from check-in.
const (
	DefaultFullRefundDays = 6
	DefaultZeroRefundDays = 2
)

type Shares struct {
	Proprietor int64 `json:"proprietor_share"`
	MainTenant int64 `json:"main_tenant_share"`
	Platform   int64 `json:"platform_share"`
}

// Compute splits the accommodation amount A and the guest-facing platform
// fee F. The platform keeps F plus whatever of A the two parties do not
// receive, so the shares always add up to A + F exactly.
func Compute(accommodation, platformFee int64) Shares {
	mainTenant := accommodation * mainTenantBP / fullBP
	proprietor := accommodation * proprietorBP / fullBP
	return Shares{
		Proprietor: proprietor,
		MainTenant: mainTenant,
		Platform:   platformFee + accommodation - mainTenant - proprietor,
	}
}

// Rescale keeps the unrefunded part of every share, so the residual of a
// cancelled stay is still split three ways. The parties' shares are floored
// and the platform takes the remainder, so the result always adds up to
// Total() - RefundAmount(Total(), refundPercent).
func (s Shares) Rescale(refundPercent int) Shares {
	rate := clampPercent(refundPercent)
	keep := int64(100 - rate)
	kept := s.Total() - RefundAmount(s.Total(), rate)
	proprietor := s.Proprietor * keep / 100
	mainTenant := s.MainTenant * keep / 100
	return Shares{
		Proprietor: proprietor,
		MainTenant: mainTenant,
		Platform:   kept - proprietor - mainTenant,
	}
}

func (s Shares) Total() int64 {
	return s.Proprietor + s.MainTenant + s.Platform
}

// PlatformFee returns the guest-facing fee F = total - accommodation - tax.
func PlatformFee(total, accommodation, tax int64) int64 {
	return total - accommodation - tax
}

// RefundAmount is the part of total returned to the guest.
func RefundAmount(total int64, refundPercent int) int64 {
	return total * int64(clampPercent(refundPercent)) / 100
}

// Deadlines are the two instants that bound the refund tiers. Each is the
// last instant of its calendar day.
type Deadlines struct {
	Full time.Time
	Zero time.Time
}

// DefaultDeadlines derives the fallback deadlines from the check-in date.
func DefaultDeadlines(checkIn time.Time, loc *time.Location) Deadlines {
	in := dateIn(checkIn, loc)
	return Deadlines{
		Full: EndOfDay(in.AddDate(0, 0, -DefaultFullRefundDays), loc),
		Zero: EndOfDay(in.AddDate(0, 0, -DefaultZeroRefundDays), loc),
	}
}

// NewDeadlines normalises configured deadline dates to end of day in loc.
func NewDeadlines(full, zero time.Time, loc *time.Location) Deadlines {
	return Deadlines{Full: EndOfDay(dateIn(full, loc), loc), Zero: EndOfDay(dateIn(zero, loc), loc)}
}

// RefundRate returns the refund percent for a cancellation at now.
//
//	now <= Full         -> 100
//	Full < now <= Zero  -> 50
//	now > Zero          -> 0
func (d Deadlines) RefundRate(now time.Time) int {
	switch {
	case !now.After(d.Full):
		return RefundFull
	case !now.After(d.Zero):
		return RefundHalf
	default:
		return RefundNone
	}
}

// EndOfDay returns the last representable instant of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CalendarDate returns the calendar day of t as seen in loc, at UTC
// midnight. Stored dates use this form.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateIn reads the year, month and day of a stored date as a day in loc.
func dateIn(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// Nights counts the nights between check-in and check-out dates.
func Nights(checkIn, checkOut time.Time) int {
	in := time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day(), 0, 0, 0, 0, time.UTC)
	out := time.Date(checkOut.Year(), checkOut.Month(), checkOut.Day(), 0, 0, 0, 0, time.UTC)
	return int(out.Sub(in).Hours() / 24)
}

// Accommodation is the nightly rate times the number of nights.
func Accommodation(nightlyRate int64, nights int) int64 {
	return nightlyRate * int64(nights)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
