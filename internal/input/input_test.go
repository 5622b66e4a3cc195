package input

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueIsFIFO(t *testing.T) {
	q := New()

	_, ok := q.Poll()
	require.False(t, ok, "empty queue has nothing to poll")

	q.Push(Event_t{Kind: KindKey, Key: 'a', Pressed: 1})
	q.Push(Event_t{Kind: KindMouse, X: 10, Y: 20, Buttons: MouseButton})

	first, ok := q.Poll()
	require.True(t, ok)
	require.Equal(t, KindKey, first.Kind)
	require.Equal(t, uint8('a'), first.Key)

	second, ok := q.Poll()
	require.True(t, ok)
	require.Equal(t, KindMouse, second.Kind)
	require.Equal(t, int16(10), second.X)
	require.Equal(t, int16(20), second.Y)

	_, ok = q.Poll()
	require.False(t, ok, "queue drained after two pops")
}
