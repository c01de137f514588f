package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/pricing"
)

func TestEngineRendersDocument(t *testing.T) {
	e := NewEngine(Config{Branding: Branding{Name: "Slow Drip", Tagline: "Heart of the city"}, Logger: zerolog.Nop()})
	t.Cleanup(e.Close)
	e.Start()

	lines := FromBasket(largeBasket(20))
	doc, err := e.Render(context.Background(), lines, "1/2/2026, 9:30:00 AM")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(doc.Bytes, []byte("%PDF-")))
	require.Equal(t, "order_1_2_2026__9_30_00_AM.pdf", doc.Filename)

	require.True(t, strings.HasPrefix(doc.Preview, "data:application/pdf;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(doc.Preview, "data:application/pdf;base64,"))
	require.NoError(t, err)
	require.Equal(t, doc.Bytes, decoded)

	require.Equal(t, "Grand Total: $"+pricing.Format(Total(lines)), doc.Layout.GrandTotal.Value)
	require.Len(t, doc.Layout.Items, 20)
	for _, blk := range doc.Layout.Items {
		for _, o := range blk.Options {
			require.LessOrEqual(t, o.X+pdfWidth(t, o), PageWidth-marginX+1e-6)
		}
	}
}

func pdfWidth(t *testing.T, txt Text) float64 {
	t.Helper()
	tr, err := loadBackend()
	require.NoError(t, err)
	m := pdfMetrics{pdf: fpdf.New("P", "pt", "A4", ""), tr: tr}
	return m.Width(txt.Value, txt.Font)
}

func TestEngineRetriesInitialisation(t *testing.T) {
	e := NewEngine(Config{Logger: zerolog.Nop()})
	t.Cleanup(e.Close)
	var calls atomic.Int32
	e.boot = func() (func(string) string, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("fonts unavailable")
		}
		return func(s string) string { return s }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Await(ctx))
	require.EqualValues(t, 3, calls.Load())

	select {
	case <-e.Ready():
	default:
		t.Fatal("ready channel should be closed")
	}
}

func TestBootDelayDoublesUpToCap(t *testing.T) {
	require.Equal(t, 50*time.Millisecond, bootDelay(1))
	require.Equal(t, 100*time.Millisecond, bootDelay(2))
	require.Equal(t, 3200*time.Millisecond, bootDelay(7))
	require.Equal(t, 5*time.Second, bootDelay(8))
	require.Equal(t, 5*time.Second, bootDelay(1000))
}

func TestEngineAwaitTimesOut(t *testing.T) {
	e := NewEngine(Config{Logger: zerolog.Nop()})
	t.Cleanup(e.Close)
	e.boot = func() (func(string) string, error) { return nil, errors.New("still loading") }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Render(ctx, nil, "ts")
	require.ErrorIs(t, err, ErrNotReady)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFilename(t *testing.T) {
	require.Equal(t, "order_2026_01_02_09_30.pdf", Filename("2026-01-02 09:30"))
	require.Equal(t, "order___.pdf", Filename("é/"))
}
