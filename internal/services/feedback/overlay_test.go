package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablesync/internal/dependencies/mocks"
	"github.com/mcoot/tablesync/internal/model"
)

type OverlaySuite struct {
	suite.Suite
	clock   *mocks.MockClock
	overlay *Overlay
}

func TestOverlaySuite(t *testing.T) {
	suite.Run(t, new(OverlaySuite))
}

func (s *OverlaySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.overlay = NewOverlay(s.clock, DefaultConfig())
}

func (s *OverlaySuite) TestEmojiExpiresAfterTwoSeconds() {
	s.overlay.ShowEmoji("bob", "🎲")
	s.Len(s.overlay.Items(), 1)

	s.clock.Advance(1999 * time.Millisecond)
	s.Len(s.overlay.Items(), 1)

	s.clock.Advance(time.Millisecond)
	s.Empty(s.overlay.Items())
}

func (s *OverlaySuite) TestMessageExpiresAfterThreeSeconds() {
	s.overlay.ShowMessage("bob", "Good luck!")

	s.clock.Advance(2 * time.Second)
	items := s.overlay.Items()
	s.Require().Len(items, 1)
	s.Equal(model.OverlayMessage, items[0].Kind)

	s.clock.Advance(time.Second)
	s.Empty(s.overlay.Items())
}

func (s *OverlaySuite) TestSlotsAreIndependent() {
	s.overlay.ShowEmoji("alice", "🙂")
	s.clock.Advance(time.Second)
	s.overlay.ShowEmoji("bob", "😮")

	s.clock.Advance(time.Second)
	items := s.overlay.Items()
	s.Require().Len(items, 1)
	s.Equal("bob", items[0].Player)
}

func (s *OverlaySuite) TestNewContentResetsOnlyThatSlot() {
	s.overlay.ShowEmoji("alice", "🙂")
	s.overlay.ShowEmoji("bob", "😮")
	s.clock.Advance(1500 * time.Millisecond)
	s.overlay.ShowEmoji("alice", "😂")

	s.clock.Advance(time.Second)
	items := s.overlay.Items()
	s.Require().Len(items, 1)
	s.Equal("alice", items[0].Player)
	s.Equal("😂", items[0].Content)
}

func (s *OverlaySuite) TestItemsOrderedByPlayer() {
	s.overlay.ShowEmoji("zed", "a")
	s.overlay.ShowEmoji("amy", "b")

	items := s.overlay.Items()
	s.Equal("amy", items[0].Player)
	s.Equal("zed", items[1].Player)
}

func (s *OverlaySuite) TestCloseCancelsEverything() {
	changes := 0
	s.overlay.OnChange(func([]model.OverlayItem) { changes++ })
	s.overlay.ShowEmoji("alice", "🙂")
	s.overlay.ShowMessage("bob", "Nice")
	s.Equal(2, changes)

	s.overlay.Close()
	s.Equal(0, s.clock.PendingTimers())

	s.clock.Advance(time.Minute)
	s.overlay.ShowEmoji("alice", "🙂")
	s.Equal(2, changes)
	s.Empty(s.overlay.Items())
}
