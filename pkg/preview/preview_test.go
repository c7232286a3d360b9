package preview

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestToPDFUnavailableBinary(t *testing.T) {
	c := New("definitely-not-a-real-soffice", time.Second, zerolog.Nop())

	_, err := c.ToPDF(context.Background(), "/tmp/workbook.xlsx")
	require.ErrorIs(t, err, ErrConverterUnavailable)
}

func TestNewDefaultsBinary(t *testing.T) {
	c := New("", 0, zerolog.Nop())
	require.Equal(t, "soffice", c.binary)
}
