package calculator

// KeyRequest is the JSON body for POST /calculator/sessions/{id}/keys.
type KeyRequest struct {
	Key   string `json:"key"`   // "0"-"9", ".", "+", "-", "*", "/", "Enter", "=", "Escape", "c", "C", "Backspace", "±"
	Shift bool   `json:"shift"` // Shift+Escape clears everything
}

// SelectRequest is the JSON body for POST /calculator/sessions/{id}/history/select.
type SelectRequest struct {
	Entry string `json:"entry"`
}

// ReplayRequest is the JSON body for POST /calculator/replay.
type ReplayRequest struct {
	Keys []string `json:"keys"` // key tokens, "Shift+" prefix allowed
}

// ViewResponse mirrors what the calculator display shows.
type ViewResponse struct {
	Display        string   `json:"display"`
	Label          string   `json:"label"`
	Error          bool     `json:"error"`
	ActiveOperator string   `json:"active_operator,omitempty"`
	FontSizePx     int      `json:"font_size_px"`
	History        []string `json:"history"`
	HistoryOpen    bool     `json:"history_open"`
	SoundOn        bool     `json:"sound_on"`
}

// CueResponse is one feedback cue for the client to play.
type CueResponse struct {
	Kind        string `json:"kind"`
	Control     string `json:"control,omitempty"`
	FrequencyHz int    `json:"frequency_hz,omitempty"`
	Waveform    string `json:"waveform,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// SessionResponse is returned when a session is created or read.
type SessionResponse struct {
	SessionID string       `json:"session_id"`
	View      ViewResponse `json:"view"`
}

// ActionResponse is returned by every session action.
type ActionResponse struct {
	SessionID string        `json:"session_id"`
	Key       string        `json:"key,omitempty"`
	Handled   bool          `json:"handled"`
	View      ViewResponse  `json:"view"`
	Cues      []CueResponse `json:"cues"`
}

// ReplayStep records the display after one replayed key.
type ReplayStep struct {
	Key     string `json:"key"`
	Display string `json:"display"`
	Label   string `json:"label"`
}

// ReplayResponse is the JSON response for POST /calculator/replay.
type ReplayResponse struct {
	Steps []ReplayStep `json:"steps"`
	View  ViewResponse `json:"view"`
}

func newViewResponse(v View) ViewResponse {
	history := v.History
	if history == nil {
		history = []string{}
	}
	return ViewResponse{
		Display:        v.Display,
		Label:          v.Label,
		Error:          v.Error,
		ActiveOperator: v.ActiveOperator,
		FontSizePx:     v.FontSize,
		History:        history,
		HistoryOpen:    v.HistoryOpen,
		SoundOn:        v.SoundOn,
	}
}

func newCueResponses(cues []Cue) []CueResponse {
	out := make([]CueResponse, 0, len(cues))
	for _, c := range cues {
		out = append(out, CueResponse{
			Kind:        string(c.Kind),
			Control:     c.Control,
			FrequencyHz: c.Frequency,
			Waveform:    c.Waveform,
			DurationMS:  c.Duration.Milliseconds(),
		})
	}
	return out
}
