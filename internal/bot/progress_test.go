package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "0 B", humanBytes(0))
	assert.Equal(t, "512.00 B", humanBytes(512))
	assert.Equal(t, "1.00 KiB", humanBytes(1024))
	assert.Equal(t, "2.50 MiB", humanBytes(2.5*1024*1024))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 30s", formatDuration(30*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 1m 1s", formatDuration(3661*time.Second))
}

func TestRenderProgress(t *testing.T) {
	out := renderProgress(50, 100, 10*time.Second)
	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "●●●●●○○○○○")
	assert.Contains(t, out, "Speed: 5.00 B/s")
}

func TestRenderProgressComplete(t *testing.T) {
	out := renderProgress(100, 100, time.Second)
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "●●●●●●●●●●")
}
