package fn

import "sync"

// FuncList collects functions to run once on shutdown. It is safe for
// concurrent use.
type FuncList struct {
	mutex sync.Mutex
	fns   []func()
}

func (c *FuncList) Add(f func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fns = append(c.fns, f)
}

// Execute runs the collected functions, the most recently added first, and
// forgets them.
func (c *FuncList) Execute() {
	c.mutex.Lock()
	fns := c.fns
	c.fns = nil
	c.mutex.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
