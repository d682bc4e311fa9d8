package meter

//covenant:invariant reading() >= 0
type Meter struct {
	reading int
}

//covenant:constructor
//covenant:ensure reading() == 0
func NewMeter() *Meter { return &Meter{} }

func (m *Meter) Reading() int { return m.reading }

//covenant:require {arg 1} > 0
//covenant:ensure reading() == {old reading()} + {arg 1}
func (m *Meter) Record(n int) { m.reading += n }
