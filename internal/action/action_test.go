package action

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledParams struct {
	Loops         int  `json:"loops"`
	StartDuration int  `json:"startDuration"`
	EndDuration   int  `json:"endDuration"`
	StartValue    bool `json:"startValue"`
	EndValue      bool `json:"endValue"`
}

func TestParseList(t *testing.T) {
	data := []byte(`[
  {"kind": "LedSimple", "config": "LedSimpleAction", "enabled": true, "loops": 3,
   "startDuration": 1000, "endDuration": 500, "startValue": true, "endValue": false},
  {"kind": "BuzzerSimple", "config": "BuzzerSimpleAction", "enabled": false, "taskId": " beep "}
]`)

	actions, err := ParseList(data)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	led := actions[0]
	assert.Equal(t, "LedSimple", led.Kind)
	assert.Equal(t, "LedSimpleAction", led.ConfigName)
	assert.True(t, led.Enabled)
	assert.Empty(t, led.TaskID)

	var p ledParams
	require.NoError(t, led.Decode(&p))
	assert.Equal(t, ledParams{Loops: 3, StartDuration: 1000, EndDuration: 500, StartValue: true}, p)

	assert.Equal(t, "beep", actions[1].TaskID)
	assert.Len(t, Enabled(actions), 1)
}

func TestParseListErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "not an array", input: `{"kind":"LedSimple"}`},
		{name: "null", input: `null`},
		{name: "empty body", input: ``},
		{name: "missing kind", input: `[{"config":"x","enabled":true}]`, wantErr: ErrMissingKind},
		{name: "missing config", input: `[{"kind":"LedSimple","enabled":true}]`, wantErr: ErrMissingConfig},
		{name: "missing enabled", input: `[{"kind":"LedSimple","config":"x"}]`, wantErr: ErrMissingEnabled},
		{name: "malformed", input: `[{"kind":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseList([]byte(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestNewAndMarshal(t *testing.T) {
	a, err := New("LedSimple", "LedSimpleAction", true, "blink", ledParams{Loops: 2})
	require.NoError(t, err)
	assert.Equal(t, "blink", a.TaskID)

	b, err := json.Marshal(a)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.Equal(t, "LedSimple", fields["kind"])
	assert.Equal(t, "LedSimpleAction", fields["config"])
	assert.Equal(t, true, fields["enabled"])
	assert.Equal(t, "blink", fields["taskId"])
	assert.EqualValues(t, 2, fields["loops"])
}

func TestNewQueueItem(t *testing.T) {
	a, err := New("LedSimple", "LedSimpleAction", true, "", nil)
	require.NoError(t, err)

	item := NewQueueItem(a, "10.0.0.5")
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "LedSimpleAction", item.ConfigName)
	assert.Equal(t, "10.0.0.5", item.Origin)
	assert.False(t, item.EnqueuedAt.IsZero())
	assert.False(t, item.Threaded())

	other := NewQueueItem(a, OriginLocal)
	assert.NotEqual(t, item.ID, other.ID)
}
