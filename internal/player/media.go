package player

// RemoteMedia mirrors the browser's media element. Position and duration come
// from client reports; control calls are queued as commands for the client.
type RemoteMedia struct {
	lessonID string
	pos      float64
	dur      float64
	playing  bool
	queue    []Command
}

// NewRemoteMedia creates a media mirror for a lesson.
func NewRemoteMedia(lessonID string, pos, dur float64) *RemoteMedia {
	return &RemoteMedia{lessonID: lessonID, pos: pos, dur: dur}
}

// Update applies a client-reported position and, when known, duration.
func (m *RemoteMedia) Update(pos, dur float64) {
	m.pos = pos
	if dur > 0 {
		m.dur = dur
	}
}

func (m *RemoteMedia) Position() float64 { return m.pos }

func (m *RemoteMedia) Duration() float64 { return m.dur }

func (m *RemoteMedia) SetPosition(pos float64) {
	m.pos = pos
	m.push(Command{Type: CmdSeek, Position: &pos})
}

// Play queues a play command. Autoplay failures arrive later as play_failed
// events, so it never fails here.
func (m *RemoteMedia) Play() error {
	m.playing = true
	m.push(Command{Type: CmdPlay})
	return nil
}

func (m *RemoteMedia) Pause() {
	m.playing = false
	m.push(Command{Type: CmdPause})
}

// Playing reports whether the last control call was Play.
func (m *RemoteMedia) Playing() bool { return m.playing }

// Drain returns and clears the queued commands.
func (m *RemoteMedia) Drain() []Command {
	out := m.queue
	m.queue = nil
	return out
}

func (m *RemoteMedia) push(c Command) {
	c.LessonID = m.lessonID
	m.queue = append(m.queue, c)
}
