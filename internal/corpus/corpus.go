package corpus

import (
	"image"

	"github.com/ben-gid/traffic-eval/internal/labels"
)

// Sample is one labeled test image. Image is decoded once at load time and
// never modified afterwards.
type Sample struct {
	Path  string
	Label string
	Image *image.RGBA
}

// Corpus is the immutable test set. Samples are ordered by class (sorted)
// and then by file name, so two loads of the same tree are identical.
type Corpus struct {
	Root    string
	Samples []Sample
	Classes *labels.Space
	// Corrupt lists files that were readable but failed to decode.
	Corrupt []string
}

func (c *Corpus) Len() int { return len(c.Samples) }

func (c *Corpus) Skipped() int { return len(c.Corrupt) }

// Truth returns the ground-truth class names in sample order.
func (c *Corpus) Truth() []string {
	out := make([]string, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s.Label
	}
	return out
}

// Images returns the sample images in sample order. The slice is fresh but the
// images are shared, callers must treat them as read-only.
func (c *Corpus) Images() []image.Image {
	out := make([]image.Image, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s.Image
	}
	return out
}

// Counts returns per-class support aligned with Classes.Names().
func (c *Corpus) Counts() []int {
	counts := make([]int, c.Classes.Len())
	for _, s := range c.Samples {
		if i, ok := c.Classes.Index(s.Label); ok {
			counts[i]++
		}
	}
	return counts
}
