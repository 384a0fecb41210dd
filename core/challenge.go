package core

// Point is a position inside the challenge area, in pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClickBank is one instruction/target set of the click challenge
type ClickBank struct {
	Instruction string   `json:"instruction"`
	Items       []string `json:"items"`   // every item shown to the user, in display order
	Targets     []string `json:"targets"` // items the user must select
}
