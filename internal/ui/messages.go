package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ngmaloney/park-terminal/internal/form"
	"github.com/ngmaloney/park-terminal/internal/journal"
	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parklist"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/platform"
)

// Message types for async operations

// parksLoadedMsg is sent when the list has been re-fetched
type parksLoadedMsg struct {
	err error
}

// formLoadedMsg is sent when the park being edited has been fetched
type formLoadedMsg struct {
	err error
}

// submitDoneMsg is sent when a create or update attempt finishes
type submitDoneMsg struct {
	res form.Result
}

// deleteDoneMsg is sent when a delete attempt finishes
type deleteDoneMsg struct {
	res parklist.DeleteResult
}

// imageCheckedMsg is sent when a park image has been probed
type imageCheckedMsg struct {
	parkID string
	url    string
	err    error
}

// copiedMsg is sent after text was placed on the clipboard
type copiedMsg struct {
	err error
}

// toastExpiredMsg clears a notification unless a newer one replaced it
type toastExpiredMsg struct {
	seq int
}

// detailLoadedMsg is sent when the park shown in the detail view has been fetched
type detailLoadedMsg struct {
	id   string
	park *models.Park
	err  error
}

func refreshParks(l *parklist.Controller) tea.Cmd {
	return func() tea.Msg {
		return parksLoadedMsg{err: l.Refresh(context.Background())}
	}
}

// loadDetail fetches the server copy of a park for the detail view
func loadDetail(client parksapi.Client, caps platform.Capabilities, id string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if !caps.Online(ctx) {
			return detailLoadedMsg{id: id, err: &parksapi.Error{Kind: parksapi.KindOffline, Op: "get"}}
		}
		p, err := client.Get(ctx, id)
		if err != nil {
			return detailLoadedMsg{id: id, err: parksapi.Classify("get", err)}
		}
		return detailLoadedMsg{id: id, park: p}
	}
}

func loadForm(f *form.Controller) tea.Cmd {
	return func() tea.Msg {
		return formLoadedMsg{err: f.Load(context.Background())}
	}
}

func executeSubmit(f *form.Controller) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{res: f.Execute(context.Background())}
	}
}

func retrySubmit(f *form.Controller) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{res: f.Retry(context.Background())}
	}
}

func executeDelete(l *parklist.Controller) tea.Cmd {
	return func() tea.Msg {
		return deleteDoneMsg{res: l.ExecuteDelete(context.Background())}
	}
}

func retryDelete(l *parklist.Controller) tea.Cmd {
	return func() tea.Msg {
		return deleteDoneMsg{res: l.RetryDelete(context.Background())}
	}
}

func probeImage(p ImageProber, parkID, url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return imageCheckedMsg{parkID: parkID, url: url, err: p.ProbeImage(ctx, url)}
	}
}

func copyText(caps platform.Capabilities, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: caps.Copy(text)}
	}
}

// recordEntry stores a notification in the journal. Failures only reach the log.
func recordEntry(rec journal.Recorder, e journal.Entry, onErr func(error)) tea.Cmd {
	return func() tea.Msg {
		if err := rec.Record(context.Background(), &e); err != nil && onErr != nil {
			onErr(err)
		}
		return nil
	}
}

func expireToast(seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}
