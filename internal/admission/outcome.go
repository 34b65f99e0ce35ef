package admission

// Outcome is the result of one admission attempt. Only OutcomeSpawned
// registers an entity; every other value leaves the world as it was.
type Outcome int

const (
	OutcomeSpawned Outcome = iota
	OutcomeDisabled
	OutcomeNoCandidate
	OutcomeOccupied
	OutcomeModelTimeout
	OutcomeVehicleFailed
	OutcomeDriverFailed
	OutcomeSeatFailed
)

var outcomeNames = [...]string{
	OutcomeSpawned:       "spawned",
	OutcomeDisabled:      "disabled",
	OutcomeNoCandidate:   "no_candidate",
	OutcomeOccupied:      "occupied",
	OutcomeModelTimeout:  "model_timeout",
	OutcomeVehicleFailed: "vehicle_failed",
	OutcomeDriverFailed:  "driver_failed",
	OutcomeSeatFailed:    "seat_failed",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Attempted reports whether the outcome came from an actual spawn attempt at a
// candidate site, as opposed to being skipped before one was chosen.
func (o Outcome) Attempted() bool {
	return o != OutcomeDisabled && o != OutcomeNoCandidate
}
