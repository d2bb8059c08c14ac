package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStoreDataTrackFIFO(t *testing.T) {
	s := NewConversationStore()
	for i := range maxHistory + 5 {
		s.AppendData("conv", QueryTurn{Query: fmt.Sprintf("q%d", i), SQL: "s"})
	}

	turns := s.DataHistory("conv")
	require.Len(t, turns, maxHistory)
	assert.Equal(t, "q5", turns[0].Query)
	assert.Equal(t, fmt.Sprintf("q%d", maxHistory+4), turns[len(turns)-1].Query)
}

func TestConversationStoreEmptyIDIsNoOp(t *testing.T) {
	s := NewConversationStore()
	s.AppendData("", QueryTurn{Query: "q", SQL: "s"})
	s.AppendGeneral("", ChatTurn{User: "u", Assistant: "a"})

	assert.False(t, s.HasDataHistory(""))
	assert.Empty(t, s.DataHistory(""))
	assert.Empty(t, s.GeneralHistory(""))
	assert.Zero(t, s.Conversations())
}

func TestConversationStoreTracksAreIndependent(t *testing.T) {
	s := NewConversationStore()
	s.AppendGeneral("conv", ChatTurn{User: "hi", Assistant: "hello"})

	assert.False(t, s.HasDataHistory("conv"))
	require.Len(t, s.GeneralHistory("conv"), 1)

	s.AppendData("conv", QueryTurn{Query: "q", SQL: "s"})
	assert.True(t, s.HasDataHistory("conv"))
}

func TestConversationStoreClear(t *testing.T) {
	s := NewConversationStore()
	s.AppendData("a", QueryTurn{Query: "q", SQL: "s"})
	s.AppendData("b", QueryTurn{Query: "q", SQL: "s"})
	s.AppendGeneral("a", ChatTurn{User: "u", Assistant: "x"})

	s.Clear("a")
	assert.False(t, s.HasDataHistory("a"))
	assert.Empty(t, s.GeneralHistory("a"))
	assert.True(t, s.HasDataHistory("b"))

	s.ClearAll()
	assert.False(t, s.HasDataHistory("b"))
	assert.Zero(t, s.Conversations())
	assert.Zero(t, s.TotalDataTurns())
}

func TestConversationStoreReturnsCopies(t *testing.T) {
	s := NewConversationStore()
	s.AppendData("conv", QueryTurn{Query: "q", SQL: "s"})

	turns := s.DataHistory("conv")
	turns[0].Query = "mutated"

	assert.Equal(t, "q", s.DataHistory("conv")[0].Query)
}
