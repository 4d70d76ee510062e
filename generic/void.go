package generic

// Void is an empty placeholder type, for when a value is required but carries no information.
type Void struct{}

// NewVoid creates a new Void value.
func NewVoid() Void {
	return Void{}
}
