package basket

// State is the position of a session in the basket-to-order flow.
type State string

const (
	StateEmpty      State = "empty"
	StatePopulated  State = "populated"
	StatePreviewing State = "previewing"
	StateSubmitted  State = "submitted"
)

// settle derives the resting state of an editable basket.
func settle(b *Basket) State {
	if b.Len() == 0 {
		return StateEmpty
	}
	return StatePopulated
}
