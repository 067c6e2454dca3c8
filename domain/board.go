package domain

// Column is an ordered lane of tasks within a board.
type Column struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Board is the top-level container of columns.
type Board struct {
	ID      ID       `json:"id"`
	Title   string   `json:"title"`
	Columns []Column `json:"columns"`
}

// Clone returns a deep copy of c.
func (c Column) Clone() Column {
	tasks := make([]Task, len(c.Tasks))
	for i, t := range c.Tasks {
		tasks[i] = t.Clone()
	}
	c.Tasks = tasks
	return c
}

// Clone returns a deep copy of b.
func (b Board) Clone() Board {
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = c.Clone()
	}
	b.Columns = cols
	return b
}

// MaxID returns the largest ID used by the board or anything it contains.
func (b Board) MaxID() ID {
	top := b.ID
	for _, c := range b.Columns {
		if c.ID > top {
			top = c.ID
		}
		for _, t := range c.Tasks {
			if t.ID > top {
				top = t.ID
			}
		}
	}
	return top
}
