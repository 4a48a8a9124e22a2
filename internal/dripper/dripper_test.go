package dripper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var epsilon = decimal.New(1, -9)

func assertApprox(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	diff := got.Sub(decimal.RequireFromString(want)).Abs()
	assert.True(t, diff.LessThan(epsilon), "want %s, got %s", want, got)
}

func newTestDripper(t *testing.T, duration time.Duration) (*Dripper, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	d, err := New("USDT", duration, clock.now)
	require.NoError(t, err)
	return d, clock
}

func TestNewRejectsZeroDuration(t *testing.T) {
	_, err := New("USDT", 0, nil)
	assert.Error(t, err)
	_, err = New("USDT", -time.Hour, nil)
	assert.Error(t, err)
}

func TestReleaseCurve(t *testing.T) {
	d, clock := newTestDripper(t, 48*time.Hour)
	require.NoError(t, d.Fund(decimal.NewFromInt(100)))

	// 1. Funds are not visible until a collect has set the rate
	assert.True(t, d.Collect().IsZero())

	// 2. One day in: half the 48h window has passed
	clock.advance(24 * time.Hour)
	assertApprox(t, "50", d.Collect())

	// 3. The rate re-bases against the remaining 50, so the next day
	// releases half of that, not the other 50
	clock.advance(24 * time.Hour)
	assertApprox(t, "25", d.Collect())

	// 4. Back-to-back collect releases nothing
	assert.True(t, d.Collect().IsZero())
}

func TestTopUpBeforeCollectStacksIntoCurve(t *testing.T) {
	d, clock := newTestDripper(t, 48*time.Hour)
	require.NoError(t, d.Fund(decimal.NewFromInt(100)))
	d.Collect() // rate now 100 over 48h

	// top-up does not accelerate the current curve
	require.NoError(t, d.Fund(decimal.NewFromInt(100)))
	clock.advance(24 * time.Hour)
	assertApprox(t, "50", d.Collect())
	assertApprox(t, "150", d.Balance())

	// the remaining 150 forms the new curve
	clock.advance(24 * time.Hour)
	assertApprox(t, "75", d.Collect())
}

func TestFullWindowReleasesEverything(t *testing.T) {
	d, clock := newTestDripper(t, 48*time.Hour)
	require.NoError(t, d.Fund(decimal.NewFromInt(100)))
	d.Collect()

	clock.advance(96 * time.Hour)
	released := d.Collect()
	assert.True(t, released.Equal(decimal.NewFromInt(100)), "got %s", released)
	assert.True(t, d.Balance().IsZero())
}

func TestSetDripDuration(t *testing.T) {
	d, clock := newTestDripper(t, 48*time.Hour)
	require.NoError(t, d.Fund(decimal.NewFromInt(100)))
	d.Collect()

	assert.Error(t, d.SetDripDuration(0))
	require.NoError(t, d.SetDripDuration(24*time.Hour))

	// the old rate applies until the next collect re-bases it
	clock.advance(12 * time.Hour)
	assertApprox(t, "25", d.Collect())

	// now the remaining 75 drains over 24h
	clock.advance(12 * time.Hour)
	assertApprox(t, "37.5", d.Collect())
}

func TestFundRejectsNegative(t *testing.T) {
	d, _ := newTestDripper(t, time.Hour)
	assert.Error(t, d.Fund(decimal.NewFromInt(-1)))
}
