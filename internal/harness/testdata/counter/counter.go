package counter

//covenant:invariant value() >= 0
type Counter struct {
	value int
}

//covenant:constructor
//covenant:ensure value() == 0
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Value() int { return c.value }

//covenant:require {arg 1} > 0
//covenant:ensure value() == {old value()} + {arg 1}
func (c *Counter) Add(n int) { c.value += n }
