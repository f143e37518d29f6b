package ui_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/repairshop-client/ui"
	"github.com/stretchr/testify/require"
)

func TestConsoleNotifier(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		n := ui.NewConsoleNotifier(&buf, false)

		n.Notify(ui.LevelError, "Session expired", "Please sign in again.")
		n.Notify(ui.LevelSuccess, "Saved", "")

		require.Equal(t,
			" ERROR    Session expired\n          Please sign in again.\n"+
				" SUCCESS  Saved\n",
			buf.String())
	})

	t.Run("coloured", func(t *testing.T) {
		var buf bytes.Buffer
		ui.NewConsoleNotifier(&buf, true).Notify(ui.LevelError, "Oops", "")
		require.Contains(t, buf.String(), ui.RedInverse)
		require.Contains(t, buf.String(), ui.ResetColor)
	})
}

func TestRouter(t *testing.T) {
	r := ui.NewRouter("/orders")
	var visited []string
	r.OnNavigate = func(p string) { visited = append(visited, p) }

	r.Navigate(ui.LoginPath)
	require.Equal(t, ui.LoginPath, r.Location())
	require.Equal(t, []string{ui.LoginPath}, visited)
}
