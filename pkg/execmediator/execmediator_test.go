package execmediator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseControlMessage_Resize(t *testing.T) {
	ctrl, ok := parseControlMessage([]byte(`{"type":"resize","rows":40,"cols":120}`))
	assert.True(t, ok)
	assert.Equal(t, "resize", ctrl.Type)
	assert.Equal(t, uint(40), ctrl.Rows)
	assert.Equal(t, uint(120), ctrl.Cols)
}

func TestParseControlMessage_UnrecognizedTextIsNotControl(t *testing.T) {
	_, ok := parseControlMessage([]byte("just some plain terminal output\n"))
	assert.False(t, ok, "non-JSON text must be treated as if binary, not a control frame")
}

func TestParseControlMessage_JSONWithoutTypeIsNotControl(t *testing.T) {
	_, ok := parseControlMessage([]byte(`{"rows":10,"cols":20}`))
	assert.False(t, ok, "a type field is required to recognize a control message")
}

func TestParseControlMessage_TrimsWhitespace(t *testing.T) {
	ctrl, ok := parseControlMessage([]byte("  \n" + `{"type":"resize","rows":1,"cols":1}` + "\n"))
	assert.True(t, ok)
	assert.Equal(t, "resize", ctrl.Type)
}
