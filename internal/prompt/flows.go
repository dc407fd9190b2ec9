package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/ngmaloney/park-terminal/internal/form"
	"github.com/ngmaloney/park-terminal/internal/journal"
	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parklist"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/validation"
)

// ErrCancelled is returned when the user declines a confirmation
var ErrCancelled = errors.New("cancelled")

// Session runs prompt-driven flows and records their notifications
type Session struct {
	driver   Driver
	recorder journal.Recorder
}

// NewSession creates a session. A nil recorder discards notifications.
func NewSession(d Driver, rec journal.Recorder) *Session {
	if rec == nil {
		rec = journal.Discard{}
	}
	return &Session{driver: d, recorder: rec}
}

// FillDraft asks for every field, offering the current draft value as default
func (s *Session) FillDraft(ctx context.Context, ctrl *form.Controller) error {
	for _, f := range validation.Fields() {
		field := f
		current := ctrl.Value(field)

		if field == validation.FieldCity {
			options := cityOptions()
			idx, err := s.driver.Select(ctx, SelectConfig{
				Message:      validation.Label(field) + ":",
				Options:      options,
				DefaultIndex: indexOf(options, current),
			})
			if err != nil {
				return err
			}
			if idx < 0 || idx >= len(options) {
				return fmt.Errorf("invalid city selection")
			}
			if _, err := ctrl.Set(field, options[idx]); err != nil {
				return err
			}
			continue
		}

		value, err := s.driver.Input(ctx, InputConfig{
			Message: validation.Label(field) + ":",
			Default: current,
			Validator: func(v string) error {
				if msg, err := ctrl.Set(field, v); err != nil {
					return err
				} else if msg != "" {
					return errors.New(msg)
				}
				return nil
			},
		})
		if err != nil {
			return err
		}
		if _, err := ctrl.Set(field, value); err != nil {
			return err
		}
	}
	return nil
}

// Submit runs the confirm-then-execute sequence for a form. A failed
// submission is retried only when the user agrees and the controller still
// allows it, so the loop ends after at most MaxAttempts calls.
func (s *Session) Submit(ctx context.Context, ctrl *form.Controller) (*models.Park, error) {
	action := "create"
	if ctrl.Mode() == form.ModeEdit {
		action = "update"
	}

	conf, err := ctrl.Prepare()
	if err != nil {
		var verr *form.ValidationError
		switch {
		case errors.As(err, &verr):
			for _, f := range validation.Fields() {
				if msg, ok := verr.Errors[f]; ok {
					s.info(ctx, fmt.Sprintf("  %s: %s", validation.Label(f), msg))
				}
			}
			s.notify(ctx, journal.LevelError, action, ctrl.ID(), "", fmt.Sprintf("Cannot save: %s", verr.Error()), "")
		case errors.Is(err, form.ErrNoChanges):
			s.notify(ctx, journal.LevelInfo, action, ctrl.ID(), "", "No changes to save", "")
		default:
			s.notify(ctx, journal.LevelError, action, ctrl.ID(), "", err.Error(), "")
		}
		return nil, err
	}

	s.info(ctx, conf.Title)
	for _, line := range conf.Lines {
		s.info(ctx, "  "+line)
	}
	ok, err := s.driver.Confirm(ctx, ConfirmConfig{Message: "Proceed?", Default: true})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelled
	}

	res := ctrl.Execute(ctx)
	for !res.OK() {
		s.notify(ctx, journal.LevelError, action, ctrl.ID(), "", "✗ "+res.Message(), kindOf(res.Err))
		if !res.CanRetry {
			ctrl.Cancel()
			return nil, res.Err
		}
		retry, err := s.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Retry? (attempt %d of %d)", res.Attempt+1, ctrl.MaxAttempts()),
			Default: true,
		})
		if err != nil {
			return nil, err
		}
		if !retry {
			ctrl.Cancel()
			return nil, res.Err
		}
		res = ctrl.Retry(ctx)
	}

	verb := "created"
	if action == "update" {
		verb = "updated"
	}
	s.notify(ctx, journal.LevelInfo, action, res.Park.ID, res.Park.Name, fmt.Sprintf("✓ Park %s: %s", verb, res.Park.Summary()), "")
	return res.Park, nil
}

// Delete confirms and deletes the park with id, offering bounded retries
func (s *Session) Delete(ctx context.Context, list *parklist.Controller, id string) error {
	conf, err := list.PrepareDelete(id)
	if err != nil {
		s.notify(ctx, journal.LevelError, "delete", id, "", err.Error(), "")
		return err
	}

	s.info(ctx, conf.Title)
	for _, line := range conf.Lines {
		s.info(ctx, "  "+line)
	}
	ok, err := s.driver.Confirm(ctx, ConfirmConfig{Message: "Delete this park?", Default: false})
	if err != nil {
		list.CancelDelete()
		return err
	}
	if !ok {
		list.CancelDelete()
		return ErrCancelled
	}

	res := list.ExecuteDelete(ctx)
	for !res.OK() {
		s.notify(ctx, journal.LevelError, "delete", id, conf.Park.Name, "✗ "+res.Message(), kindOf(res.Err))
		if !res.CanRetry {
			list.CancelDelete()
			return res.Err
		}
		retry, err := s.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Retry? (attempt %d of %d)", res.Attempt+1, list.MaxAttempts()),
			Default: true,
		})
		if err != nil {
			list.CancelDelete()
			return err
		}
		if !retry {
			list.CancelDelete()
			return res.Err
		}
		res = list.RetryDelete(ctx)
	}

	s.notify(ctx, journal.LevelInfo, "delete", id, conf.Park.Name, "✓ Park deleted: "+conf.Park.Summary(), "")
	return nil
}

func (s *Session) info(ctx context.Context, msg string) {
	_ = s.driver.Info(ctx, msg)
}

// notify shows a message and records it in the journal
func (s *Session) notify(ctx context.Context, level journal.Level, action, parkID, parkName, msg, kind string) {
	s.info(ctx, msg)
	_ = s.recorder.Record(ctx, &journal.Entry{
		Level:     level,
		Action:    action,
		ParkID:    parkID,
		ParkName:  parkName,
		Message:   msg,
		ErrorKind: kind,
	})
}

func kindOf(err error) string {
	var apiErr *parksapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind.String()
	}
	return ""
}

func cityOptions() []string {
	var options []string
	for _, c := range models.Cities() {
		options = append(options, string(c))
	}
	return options
}
