package playback

// MockMedia is a test double for Media.
type MockMedia struct {
	Pos     float64
	Dur     float64
	Playing bool
	PlayErr error
	Seeks   []float64 // positions set through SetPosition
	Plays   int
	Pauses  int
}

// NewMockMedia creates a paused MockMedia with the given duration.
func NewMockMedia(duration float64) *MockMedia {
	return &MockMedia{Dur: duration}
}

func (m *MockMedia) Position() float64 { return m.Pos }

func (m *MockMedia) SetPosition(pos float64) {
	m.Pos = pos
	m.Seeks = append(m.Seeks, pos)
}

func (m *MockMedia) Duration() float64 { return m.Dur }

func (m *MockMedia) Play() error {
	m.Plays++
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.Playing = true
	return nil
}

func (m *MockMedia) Pause() {
	m.Pauses++
	m.Playing = false
}
