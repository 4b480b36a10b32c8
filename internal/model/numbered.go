package model

// Result is implemented by every row type the CLI renders.
type Result interface {
	GetID() string
	GetKind() string // "artifact"
	GetContent() string
	GetLocation() string
}

// Numbered wraps a Result with its 1-indexed position in the overall result set,
// so that page 2 of a query keeps counting where page 1 stopped.
type Numbered[T Result] struct {
	Num  int `json:"num"`
	Item T   `json:"item"`
}

// GetNum returns the result number.
func (n Numbered[T]) GetNum() int { return n.Num }

// GetID delegates to the underlying item.
func (n Numbered[T]) GetID() string { return n.Item.GetID() }

// GetKind delegates to the underlying item.
func (n Numbered[T]) GetKind() string { return n.Item.GetKind() }

// GetContent delegates to the underlying item.
func (n Numbered[T]) GetContent() string { return n.Item.GetContent() }

// GetLocation delegates to the underlying item.
func (n Numbered[T]) GetLocation() string { return n.Item.GetLocation() }

// NumberedList numbers items starting at offset+1.
func NumberedList[T Result](items []T, offset int) []Numbered[T] {
	result := make([]Numbered[T], len(items))
	for i, item := range items {
		result[i] = Numbered[T]{
			Num:  offset + i + 1,
			Item: item,
		}
	}
	return result
}
