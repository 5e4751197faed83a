package backlog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/gamelog/internal/client"
	"github.com/erazemk/gamelog/internal/model"
)

// ErrMissingField is returned when a required text field is blank. No
// remote call is made in that case.
var ErrMissingField = errors.New("required field missing")

// Draft holds the values of the add/edit form.
type Draft struct {
	Name        string
	Platform    string
	Status      string
	Description string
	Cover       *client.Cover
}

// NewDraft returns an empty form with the default status.
func NewDraft() *Draft {
	return &Draft{Status: model.StatusBacklog}
}

// Reset clears every field and restores the default status.
func (d *Draft) Reset() {
	*d = Draft{Status: model.StatusBacklog}
}

// Validate checks that name and platform are filled in. Everything else,
// including the status value, is left for the store to judge.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if strings.TrimSpace(d.Platform) == "" {
		return fmt.Errorf("%w: platform", ErrMissingField)
	}
	return nil
}

// Input returns the draft's fields as the store expects them.
func (d *Draft) Input() model.GameInput {
	status := d.Status
	if status == "" {
		status = model.StatusBacklog
	}
	return model.GameInput{
		Name:        strings.TrimSpace(d.Name),
		Platform:    strings.TrimSpace(d.Platform),
		Status:      status,
		Description: strings.TrimSpace(d.Description),
	}
}

// Submission builds the request variant: with a cover when one is attached,
// fields only otherwise.
func (d *Draft) Submission() client.Submission {
	if d.Cover != nil {
		return client.FieldsWithCover(d.Input(), *d.Cover)
	}
	return client.Fields(d.Input())
}

// Edit is an open edit surface for one game.
type Edit struct {
	ID int64
	Draft
	open bool
}

// NewEdit opens an edit surface prefilled from g.
func NewEdit(g model.Game) *Edit {
	return &Edit{
		ID: g.ID,
		Draft: Draft{
			Name:        g.Name,
			Platform:    g.Platform,
			Status:      g.Status,
			Description: g.Description,
		},
		open: true,
	}
}

// IsOpen reports whether the edit surface is still showing.
func (e *Edit) IsOpen() bool {
	return e.open
}

// Close dismisses the edit surface.
func (e *Edit) Close() {
	e.open = false
}
