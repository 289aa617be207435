package timeline

import "sync"

var clipColors = []Color{
	{0, 75, 55}, {120, 65, 45}, {210, 75, 55}, {45, 85, 55},
	{280, 65, 60}, {170, 70, 45}, {330, 70, 60}, {60, 70, 50},

	{15, 80, 55}, {150, 60, 48}, {240, 60, 60}, {30, 85, 52},
	{300, 55, 58}, {90, 55, 48}, {195, 70, 50}, {350, 70, 58},

	{5, 85, 50}, {135, 55, 42}, {225, 65, 52}, {55, 80, 48},
	{265, 60, 55}, {180, 60, 45}, {315, 65, 55}, {75, 60, 45},

	{20, 75, 58}, {160, 55, 50}, {250, 55, 58}, {40, 80, 50},
	{290, 50, 55}, {105, 50, 45}, {200, 65, 55}, {340, 75, 55},
}

// Palette hands out clip colors round-robin.
type Palette struct {
	mu   sync.Mutex
	next int
}

func (p *Palette) Next() Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := clipColors[p.next%len(clipColors)]
	p.next++
	return c
}

func PaletteSize() int {
	return len(clipColors)
}
