package phone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidE164(t *testing.T) {
	valid := []string{
		"+15550000001",
		"+61412345678",
		"+442071838750",
		"+12",
	}
	for _, number := range valid {
		require.True(t, IsValidE164(number), number)
	}

	invalid := []string{
		"",
		"15550000001",
		"+0412345678",
		"+1 555 000 0001",
		"+1555000000123456",
		"0412345678",
		"+abc",
	}
	for _, number := range invalid {
		require.False(t, IsValidE164(number), number)
	}
}
