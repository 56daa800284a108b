package ebd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_Selector(t *testing.T) {
	tests := []struct {
		name   string
		window Window
		want   string
	}{
		{"no bounds", Window{}, "$dtHT$ftT$et_s0"},
		{"start only", Since(10, Minutes), "$dtHT$ftT$st_m10$et_s0"},
		{"start and end", Between(10, Minutes, 5, Hours), "$dtHT$ftT$st_m10$et_h5"},
		{"end only", Window{End: &Offset{Value: 1, Unit: Days}}, "$dtHT$ftT$et_d1"},
		{"zero start", Since(0, Seconds), "$dtHT$ftT$st_s0$et_s0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.window.Selector()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindow_SelectorInvalid(t *testing.T) {
	_, err := Since(10, Unit("w")).Selector()
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Since(-1, Minutes).Selector()
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Between(1, Hours, 2, Unit("")).Selector()
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestParseUnit(t *testing.T) {
	for _, s := range []string{"s", "m", "h", "d", "H"} {
		_, err := ParseUnit(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseUnit("y")
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestSinceDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want Offset
	}{
		{10 * time.Minute, Offset{10, Minutes}},
		{90 * time.Second, Offset{90, Seconds}},
		{2 * time.Hour, Offset{2, Hours}},
		{48 * time.Hour, Offset{2, Days}},
		{25 * time.Hour, Offset{25, Hours}},
		{-time.Minute, Offset{0, Seconds}},
	}
	for _, tt := range tests {
		w := SinceDuration(tt.d)
		require.NotNil(t, w.Start, tt.d.String())
		assert.Equal(t, tt.want, *w.Start, tt.d.String())
		assert.Nil(t, w.End)
	}
}
