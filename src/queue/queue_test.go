package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := Backoff{Base: 10 * time.Second, Max: time.Minute}
	assert.Equal(t, 10*time.Second, b.Delay(0))
	assert.Equal(t, 10*time.Second, b.Delay(1))
	assert.Equal(t, 20*time.Second, b.Delay(2))
	assert.Equal(t, 40*time.Second, b.Delay(3))
	assert.Equal(t, time.Minute, b.Delay(4))
	assert.Equal(t, time.Minute, b.Delay(30))
}

func TestTaskStr(t *testing.T) {
	task := Task{Payload: map[string]any{"order_id": "abc", "n": 1}}
	assert.Equal(t, "abc", task.Str("order_id"))
	assert.Equal(t, "", task.Str("n"))
	assert.Equal(t, "", task.Str("missing"))
}
