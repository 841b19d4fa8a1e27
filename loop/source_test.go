package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_FiresInSubscriptionOrder(t *testing.T) {
	sig := NewSignal()
	var got []string

	a := sig.Subscribe(func() { got = append(got, "a") })
	sig.Subscribe(func() { got = append(got, "b") })
	sig.Fire()

	sig.Unsubscribe(a)
	sig.Unsubscribe(a)
	sig.Fire()

	assert.Equal(t, []string{"a", "b", "b"}, got)
	assert.Equal(t, 1, sig.Len())
}

func TestInterval_RunUntilCancelled(t *testing.T) {
	iv := NewInterval(time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := 0
	iv.Subscribe(func() {
		fired++
		if fired == 3 {
			cancel()
		}
	})

	err := iv.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, fired)
}

func TestRing_KeepsNewest(t *testing.T) {
	r := newRing(3)
	assert.Empty(t, r.values())

	for i := 1; i <= 5; i++ {
		r.push(time.Duration(i))
	}

	assert.Equal(t, []time.Duration{3, 4, 5}, r.values())
	assert.Equal(t, 3, r.len())
}

func TestRing_ZeroSizeDropsSamples(t *testing.T) {
	r := newRing(0)
	r.push(time.Second)

	assert.Empty(t, r.values())
}
