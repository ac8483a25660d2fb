package order

// Stage is a step of the order creation workflow. A request only moves
// forward through the stages; any failure ends the workflow.
type Stage int

const (
	StageReceived Stage = iota
	StageValidated
	StageProductVerified
	StagePersisted
	StagePublished
	StageResponded
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageValidated:
		return "validated"
	case StageProductVerified:
		return "product_verified"
	case StagePersisted:
		return "persisted"
	case StagePublished:
		return "published"
	case StageResponded:
		return "responded"
	default:
		return "unknown"
	}
}
