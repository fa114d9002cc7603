package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingSender captures delivered titles and optionally fails every send.
type recordingSender struct {
	name   string
	fail   bool
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	if s.fail {
		return errors.New("delivery refused")
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNotifyFiltersByEventType(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, []string{"final_winner"}, testLogger())
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "surprise_winner", "Surprise winner awarded", "ticket 3"))
	require.Empty(t, sender.titles)

	require.NoError(t, n.Notify(ctx, "final_winner", "Final winner awarded", "ticket 3"))
	require.Equal(t, []string{"Final winner awarded"}, sender.titles)
}

func TestNotifyEmptyFilterAllowsEverything(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), "ticket_bought", "Ticket sold", "ticket 0"))
	require.Equal(t, []string{"Ticket sold"}, sender.titles)
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, []string{"final_winner"}, testLogger())

	require.NoError(t, n.NotifyAll(context.Background(), "Lottery daemon online", "serving"))
	require.Equal(t, []string{"Lottery daemon online"}, sender.titles)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &recordingSender{name: "bad", fail: true}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "Final winner awarded", "ticket 3")
	require.ErrorContains(t, err, "bad")
	require.Equal(t, []string{"Final winner awarded"}, good.titles)
}
