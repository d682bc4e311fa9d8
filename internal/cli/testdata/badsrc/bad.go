package bad

//covenant:invariant
type Gauge struct {
	level int
}

//covenant:frobnicate
func (g *Gauge) Level() int { return g.level }
