package testutil

// DefaultExecID is the id NewStaticIDGenerator uses when given none.
const DefaultExecID = "test-exec-default"

// StaticIDGenerator returns the same execution id every time.
//
// Log output of a scenario run with a StaticIDGenerator is byte-identical
// across runs. Unlike exec.FixedGenerator, which returns ids in sequence and
// panics when exhausted, this generator never runs out.
//
// Thread-safety: StaticIDGenerator is stateless and safe for concurrent use.
type StaticIDGenerator struct {
	id string
}

// NewStaticIDGenerator creates a generator returning id.
// If id is empty, Generate returns DefaultExecID.
func NewStaticIDGenerator(id string) *StaticIDGenerator {
	if id == "" {
		id = DefaultExecID
	}
	return &StaticIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements exec.IDGenerator.
func (g *StaticIDGenerator) Generate() string {
	return g.id
}
