package render

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatJSON(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0.75, want: `0.75`},
		{in: -3, want: `-3`},
		{in: math.NaN(), want: `"NaN"`},
		{in: math.Inf(1), want: `"+Inf"`},
		{in: math.Inf(-1), want: `"-Inf"`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			b, err := json.Marshal(Float64(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))

			var got Float64
			require.NoError(t, json.Unmarshal(b, &got))
			if math.IsNaN(tt.in) {
				assert.True(t, math.IsNaN(float64(got)))
				return
			}
			assert.Equal(t, tt.in, float64(got))
		})
	}
}

func TestFloat32JSONShortestForm(t *testing.T) {
	b, err := json.Marshal(Float32(0.1))
	require.NoError(t, err)
	assert.Equal(t, `0.1`, string(b))
}

func TestFloatJSONRejectsUnknownString(t *testing.T) {
	var f Float32
	assert.Error(t, json.Unmarshal([]byte(`"infinity"`), &f))
}
