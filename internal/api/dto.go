package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/tree"
)

const maxNameLength = 200

var kindValues = []any{string(models.KindAPI), string(models.KindScheduler), string(models.KindDatabase)}

// CreateRequest is the request body for creating a folder or an item.
type CreateRequest struct {
	Name   string `json:"name" example:"Users" validate:"required"`
	Parent string `json:"parent,omitempty" example:"6f1c..."`
	Kind   string `json:"kind" example:"api" validate:"required"`
	Order  int    `json:"order,omitempty" example:"0"`
}

// Validate validates a create request.
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.Kind, validation.Required, validation.In(kindValues...)),
		validation.Field(&r.Order, validation.Min(0)),
	)
}

// RenameRequest is the request body for renaming a folder, an item or the
// current selection.
type RenameRequest struct {
	Name string `json:"name" example:"Members" validate:"required"`
}

// Validate validates a rename request.
func (r RenameRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
	)
}

// MoveRequest is one drag-and-drop gesture.
type MoveRequest struct {
	Drag     string `json:"drag" validate:"required"`
	Target   string `json:"target" validate:"required"`
	Position string `json:"position" example:"before" validate:"required"`
}

// Validate validates a move request.
func (r MoveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Drag, validation.Required),
		validation.Field(&r.Target, validation.Required),
		validation.Field(&r.Position, validation.Required,
			validation.In(string(tree.Before), string(tree.After), string(tree.Onto))),
	)
}

// Drop converts the request into a tree drop.
func (r MoveRequest) Drop() tree.Drop {
	return tree.Drop{DragID: r.Drag, TargetID: r.Target, Position: tree.Position(r.Position)}
}

// MoveResponse reports whether a move changed the tree.
type MoveResponse struct {
	Applied bool `json:"applied"`
}

// SortRequest carries sort records for one kind.
type SortRequest struct {
	Records []models.SortRecord `json:"records" validate:"required"`
}

// Validate validates a sort request.
func (r SortRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Records, validation.Required, validation.Each(validation.By(validRecord))),
	)
}

func validRecord(v any) error {
	rec, _ := v.(models.SortRecord)
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	if rec.Order < 0 {
		return errors.New("record order must not be negative")
	}
	return nil
}

// SortResponse carries the kind's ETag after a sort.
type SortResponse struct {
	ETag string `json:"etag"`
}

// SelectionRequest selects a folder, an item, or nothing.
type SelectionRequest struct {
	Folder string `json:"folder,omitempty"`
	Item   string `json:"item,omitempty"`
}

// Validate validates a selection request.
func (r SelectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Item,
			validation.When(r.Folder != "", validation.Empty.Error("select a folder or an item, not both"))),
	)
}

// Selection converts the request into a model selection.
func (r SelectionRequest) Selection() models.Selection {
	return models.Selection{FolderID: r.Folder, ItemID: r.Item}
}

// ChangedResponse reports whether an operation changed anything.
type ChangedResponse struct {
	Changed bool `json:"changed"`
}

// DeleteSelectedResponse is returned by POST /selection/delete.
type DeleteSelectedResponse struct {
	Changed   bool             `json:"changed"`
	Selection models.Selection `json:"selection"`
}

// ChannelResponse names a log channel.
type ChannelResponse struct {
	Channel   string `json:"channel" example:"logs-0b6c..."`
	Delivered int    `json:"delivered,omitempty"`
}
