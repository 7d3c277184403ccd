package preference

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpdateFromDefault(t *testing.T) {
	s := NewStore()
	v := s.Update("tone", "formal", 1.0, 0.1)
	assert.InDelta(t, 0.55, v, 1e-9)

	m, ok := s.Get("tone")
	require.True(t, ok)
	assert.Equal(t, 1, m.UpdateCount)
	assert.InDelta(t, 0.55, m.Values["formal"], 1e-9)
}

func TestStore_ConvergesMonotonically(t *testing.T) {
	for _, target := range []float64{0, 0.2, 0.9, 1} {
		s := NewStore()
		prevDist := 1.0
		var v float64
		for n := 0; n < 200; n++ {
			v = s.Update("c", "k", target, 0.1)
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
			dist := abs(v - target)
			require.LessOrEqual(t, dist, prevDist+1e-12)
			prevDist = dist
		}
		assert.InDelta(t, target, v, 1e-6)
	}
}

func TestStore_OscillatingStaysNearAverage(t *testing.T) {
	s := NewStore()
	var v float64
	for n := 0; n < 400; n++ {
		obs := 0.2
		if n%2 == 0 {
			obs = 0.8
		}
		v = s.Update("c", "k", obs, 0.1)
	}
	assert.InDelta(t, 0.5, v, 0.05)
}

func TestStore_ClampsOutOfRange(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 1.0, s.Update("c", "k", 50, 1))
	assert.Equal(t, 0.0, s.Update("c", "k", -50, 1))
}

func TestStore_IgnoresNonFiniteObservations(t *testing.T) {
	s := NewStore()
	assert.Equal(t, DefaultStrength, s.Update("settings", "volume", math.NaN(), 0.1))
	_, ok := s.Get("settings")
	assert.False(t, ok, "a rejected observation creates no model")

	s.Update("settings", "volume", 1, 0.5)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.InDelta(t, 0.75, s.Update("settings", "volume", bad, 0.5), 1e-9)
	}

	m, ok := s.Get("settings")
	require.True(t, ok)
	assert.Equal(t, 1, m.UpdateCount)
	_, err := json.Marshal(m)
	assert.NoError(t, err)
}

func TestStore_NaNRateIsNoOp(t *testing.T) {
	s := NewStore()
	s.Update("c", "k", 1, 0.5)
	assert.InDelta(t, 0.75, s.Update("c", "k", 0, math.NaN()), 1e-9)
}

func TestStore_RestoreResetsNonFinite(t *testing.T) {
	s := NewStore()
	s.Restore([]Model{{Category: "settings", Values: map[string]float64{"volume": math.NaN(), "brightness": math.Inf(1)}}})

	m, ok := s.Get("settings")
	require.True(t, ok)
	assert.Equal(t, DefaultStrength, m.Values["volume"])
	assert.Equal(t, DefaultStrength, m.Values["brightness"])
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Update("c", "k", 1, 0.5)

	m, _ := s.Get("c")
	m.Values["k"] = 0

	again, _ := s.Get("c")
	assert.InDelta(t, 0.75, again.Values["k"], 1e-9)

	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestStore_Decay(t *testing.T) {
	s := NewStore()
	s.Update("c", "high", 1, 1)
	s.Update("c", "low", 0, 1)

	s.Decay(0.5)
	m, _ := s.Get("c")
	assert.InDelta(t, 0.75, m.Values["high"], 1e-9)
	assert.InDelta(t, 0.25, m.Values["low"], 1e-9)
}

func TestStore_RestoreAndAll(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return at }))

	n := s.Restore([]Model{
		{Category: "b", Values: map[string]float64{"x": 1.4}},
		{Category: "a", Values: map[string]float64{"y": 0.3}, UpdateCount: 7},
		{Values: map[string]float64{"z": 1}},
	})
	assert.Equal(t, 2, n)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Category)
	assert.Equal(t, 7, all[0].UpdateCount)
	assert.Equal(t, 1.0, all[1].Values["x"])

	s.Update("a", "y", 1, 0.5)
	m, _ := s.Get("a")
	assert.Equal(t, at, m.UpdatedAt)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Update("c", "k", 1, 0.1)
			}
		}()
	}
	wg.Wait()

	m, _ := s.Get("c")
	assert.Equal(t, 1000, m.UpdateCount)
}

func TestObserve(t *testing.T) {
	ts := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	ex := interaction.NewExtractor(nil)

	msg := interaction.Interaction{Type: interaction.TypeMessageSent, Content: "great idea?", Timestamp: ts}
	obs := Observe(msg, ex.Extract(msg))
	assert.Contains(t, obs, Observation{CategorySchedule, "morning", 1})
	assert.Contains(t, obs, Observation{CategoryCommunication, "questions", 1})
	assert.Contains(t, obs, Observation{CategoryTone, "positive", 1})

	feat := interaction.Interaction{Type: interaction.TypeFeatureUsed, Metadata: map[string]string{"feature": "voice_notes"}}
	assert.Equal(t, []Observation{{CategoryFeatures, "voice_notes", 1}}, Observe(feat, ex.Extract(feat)))

	setting := interaction.Interaction{Type: interaction.TypeSettingChanged, Metadata: map[string]string{"setting": "font_scale", "value": "0.8"}}
	assert.Equal(t, []Observation{{CategorySettings, "font_scale", 0.8}}, Observe(setting, ex.Extract(setting)))

	for _, raw := range []string{"NaN", "Inf", "-Inf", "loud"} {
		odd := interaction.Interaction{Type: interaction.TypeSettingChanged, Metadata: map[string]string{"setting": "volume", "value": raw}}
		assert.Equal(t, []Observation{{CategorySettings, "volume", 1}}, Observe(odd, ex.Extract(odd)), raw)
	}

	s := NewStore()
	s.Apply(Observe(feat, ex.Extract(feat)), 0.5)
	m, ok := s.Get(CategoryFeatures)
	require.True(t, ok)
	assert.InDelta(t, 0.75, m.Values["voice_notes"], 1e-9)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
