package parallel

// DefaultBandHeight is the number of scanlines per band when the caller does
// not choose one.
const DefaultBandHeight = 16

// Band is a horizontal strip of scanlines [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Height returns the number of scanlines in the band.
func (b Band) Height() int {
	return b.Y1 - b.Y0
}

// SplitBands divides height scanlines into consecutive bands of at most
// bandHeight rows. The last band may be shorter.
func SplitBands(height, bandHeight int) []Band {
	if height <= 0 {
		return nil
	}
	if bandHeight <= 0 {
		bandHeight = DefaultBandHeight
	}
	bands := make([]Band, 0, (height+bandHeight-1)/bandHeight)
	for y := 0; y < height; y += bandHeight {
		bands = append(bands, Band{Y0: y, Y1: min(y+bandHeight, height)})
	}
	return bands
}

// ForEachBand runs fn once per band on the pool and waits for completion.
// A nil pool runs the bands sequentially.
func ForEachBand(p *WorkerPool, bands []Band, fn func(Band)) {
	if p == nil {
		for _, b := range bands {
			fn(b)
		}
		return
	}
	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() { fn(b) }
	}
	p.ExecuteAll(work)
}
