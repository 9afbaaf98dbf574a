package split

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompute_ScenarioA(t *testing.T) {
	// rate=100.00, nights=2, no tax, no fee
	accommodation := Accommodation(10000, 2)
	s := Compute(accommodation, 0)

	assert.Equal(t, int64(20000), accommodation)
	assert.Equal(t, int64(11640), s.MainTenant)
	assert.Equal(t, int64(7760), s.Proprietor)
	assert.Equal(t, int64(600), s.Platform)
}

func TestCompute_Properties(t *testing.T) {
	amounts := []int64{20000, 12345, 99999, 1, 0, 785000}
	fees := []int64{0, 1500, 333}

	for _, a := range amounts {
		for _, f := range fees {
			s := Compute(a, f)

			assert.Equal(t, a+f, s.Total(), "shares must reconstruct A+F for A=%d F=%d", a, f)
			if a%10000 == 0 {
				assert.Equal(t, a*97/100, s.MainTenant+s.Proprietor)
				assert.Equal(t, a*3/100, s.Platform-f)
			}
		}
	}
}

func TestShares_Rescale_ScenarioB(t *testing.T) {
	s := Compute(20000, 0).Rescale(RefundHalf)

	assert.Equal(t, int64(5820), s.MainTenant)
	assert.Equal(t, int64(3880), s.Proprietor)
	assert.Equal(t, int64(300), s.Platform)
}

func TestShares_Rescale_Bounds(t *testing.T) {
	s := Compute(20000, 1000)

	assert.Equal(t, s, s.Rescale(RefundNone))
	assert.Equal(t, Shares{}, s.Rescale(RefundFull))
	assert.Equal(t, Shares{}, s.Rescale(150))
}

func TestShares_Rescale_NoCentLost(t *testing.T) {
	totals := []int64{1, 3, 99, 12345, 20001, 99999, 785003}
	for _, total := range totals {
		for rate := 0; rate <= 100; rate++ {
			// no tax, so the shares cover the whole charge
			residual := Compute(total, 0).Rescale(rate)

			assert.Equal(t, total, RefundAmount(total, rate)+residual.Total(), "total=%d rate=%d", total, rate)
			assert.GreaterOrEqual(t, residual.Platform, int64(0), "total=%d rate=%d", total, rate)
		}
	}
}

func TestShares_Rescale_RemainderGoesToPlatform(t *testing.T) {
	// 12345 splits 4789 / 7184 / 372; the guest gets 6172 back
	s := Compute(12345, 0).Rescale(RefundHalf)

	assert.Equal(t, int64(2394), s.Proprietor)
	assert.Equal(t, int64(3592), s.MainTenant)
	assert.Equal(t, int64(187), s.Platform)
	assert.Equal(t, int64(12345-6172), s.Total())
}

func TestRefundAmount(t *testing.T) {
	assert.Equal(t, int64(11000), RefundAmount(22000, RefundHalf))
	assert.Equal(t, int64(22000), RefundAmount(22000, RefundFull))
	assert.Equal(t, int64(0), RefundAmount(22000, RefundNone))
}

func TestPlatformFee(t *testing.T) {
	assert.Equal(t, int64(1500), PlatformFee(23000, 20000, 1500))
}

func TestDeadlines_RefundRateBoundaries(t *testing.T) {
	checkIn := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	d := DefaultDeadlines(checkIn, time.UTC)

	assert.Equal(t, time.Date(2026, 11, 14, 23, 59, 59, 999999999, time.UTC), d.Full)
	assert.Equal(t, time.Date(2026, 11, 18, 23, 59, 59, 999999999, time.UTC), d.Zero)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"well before", time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC), RefundFull},
		{"start of full deadline day", time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC), RefundFull},
		{"exactly full deadline", d.Full, RefundFull},
		{"just after full deadline", d.Full.Add(time.Second), RefundHalf},
		{"exactly zero deadline", d.Zero, RefundHalf},
		{"one second after zero deadline", d.Zero.Add(time.Second), RefundNone},
		{"on check-in", checkIn, RefundNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.RefundRate(tt.now))
		})
	}
}

func TestEndOfDay_Location(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 23:30 UTC on the 14th is already the 15th in Paris.
	eod := EndOfDay(time.Date(2026, 11, 14, 23, 30, 0, 0, time.UTC), paris)

	assert.Equal(t, 15, eod.Day())
	assert.Equal(t, 23, eod.Hour())
}

func TestDefaultDeadlines_WestOfUTC(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	checkIn := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)

	d := DefaultDeadlines(checkIn, ny)

	full := d.Full.In(ny)
	assert.Equal(t, 14, full.Day())
	assert.Equal(t, 23, full.Hour())
}

func TestCalendarDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	got := CalendarDate(time.Date(2026, 11, 14, 20, 0, 0, 0, time.UTC), tokyo)

	assert.Equal(t, time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestNights(t *testing.T) {
	in := time.Date(2026, 3, 28, 15, 0, 0, 0, time.UTC)
	out := time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)

	assert.Equal(t, 5, Nights(in, out))
	assert.Equal(t, 0, Nights(in, in))
}
