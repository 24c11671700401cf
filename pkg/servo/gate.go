package servo

// Gate drives the mapper between two logical positions. For a positional
// servo they are the open and closed gate angles; for a continuous-rotation
// servo they are the run speed and the stop point.
type Gate struct {
	mapper     *Mapper
	openAngle  int32
	closeAngle int32
}

// NewGate creates a gate over the mapper.
func NewGate(mapper *Mapper, openAngle, closeAngle int32) *Gate {
	return &Gate{
		mapper:     mapper,
		openAngle:  openAngle,
		closeAngle: closeAngle,
	}
}

// Open commands the open (dispensing) position.
func (g *Gate) Open() {
	g.mapper.SetLogicalAngle(g.openAngle)
}

// Close commands the closed (stopped) position.
func (g *Gate) Close() {
	g.mapper.SetLogicalAngle(g.closeAngle)
}

// IsOpen reports whether the last command was the open position.
func (g *Gate) IsOpen() bool {
	return g.mapper.Angle() == g.openAngle
}

// Angle returns the last commanded logical angle.
func (g *Gate) Angle() int32 {
	return g.mapper.Angle()
}
