package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMemoryValue(t *testing.T) {
	assert.Equal(t, 2048.0, NormalizeMemoryValue(2, Gi))
	assert.Equal(t, 300.0, NormalizeMemoryValue(300, Mi))
	assert.Equal(t, 300.0, NormalizeMemoryValue(300, ""))
	assert.Equal(t, 1536.0, ConvertGiToMi(1.5))
}

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  string
	}{
		{512, Mi, "512.00 Mi"},
		{1023.999, Mi, "1024.00 Mi"},
		{1024, Mi, "1.00 Gi"},
		{3072, "", "3.00 Gi"},
		{1.5, Gi, "1.50 Gi"},
		{2048, Gi, "2048.00 Gi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMemory(tt.value, tt.unit))
	}
}

func TestParseQuantityMi(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"512Mi", 512},
		{"2Gi", 2048},
		{"1024Ki", 1},
		{" 256 ", 256},
	}
	for _, tt := range tests {
		got, err := ParseQuantityMi(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 0.0001, tt.in)
	}

	_, err := ParseQuantityMi("lots")
	assert.Error(t, err)
}

func TestHumanizeQuantity(t *testing.T) {
	assert.Equal(t, "2.00 Gi", HumanizeQuantity("2Gi"))
	assert.Equal(t, "512.00 Mi", HumanizeQuantity("512Mi"))
	assert.Equal(t, "n/a", HumanizeQuantity("n/a"))
}
