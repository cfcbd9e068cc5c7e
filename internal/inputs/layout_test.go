package inputs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Default(t *testing.T) {
	require.NoError(t, DefaultLayout.Validate())
	assert.Equal(t, 5, DefaultLayout.Size())
}

func TestLayout_Validate(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		wantErr string
	}{
		{"negative", Layout{Coarse1: -1, Fine1: 1, Coarse2: 2, Fine2: 3, Joystick: 4}, "negative offset"},
		{"overlap", Layout{Coarse1: 0, Fine1: 1, Coarse2: 1, Fine2: 3, Joystick: 4}, "share offset 1"},
		{"sparse", Layout{Coarse1: 1, Fine1: 3, Coarse2: 5, Fine2: 7, Joystick: 9}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLayoutFromMap(t *testing.T) {
	l, err := LayoutFromMap(map[string]int{"coarse1": 1, "fine1": 2, "coarse2": 3, "fine2": 4, "joystick": 5})
	require.NoError(t, err)
	assert.Equal(t, Layout{Coarse1: 1, Fine1: 2, Coarse2: 3, Fine2: 4, Joystick: 5}, l)
	assert.Equal(t, 6, l.Size())
	assert.Equal(t, l.Map()["joystick"], 5)

	_, err = LayoutFromMap(map[string]int{"coarse1": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing offsets")

	_, err = LayoutFromMap(nil)
	assert.Error(t, err)

	roundTrip, err := LayoutFromMap(DefaultLayout.Map())
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout, roundTrip)
}
