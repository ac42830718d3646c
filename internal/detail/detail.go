// Package detail drives the placemark detail panel: the name/address edit buffer, the
// add/remove membership action and the look-around preview.
package detail

import (
	"context"
	"errors"
	"strings"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/preview"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/google/uuid"
)

var ErrActionDisabled = errors.New("action not allowed")

type MembershipAction string

const (
	ActionAdd    MembershipAction = "add"
	ActionRemove MembershipAction = "remove"
)

// Controller edits one placemark in the context of one destination. It is not safe for
// concurrent use; the owning session serializes calls.
type Controller struct {
	store         store.Store
	destinationID *uuid.UUID
	owner         string
	placemark     model.Placemark
	preview       *preview.Fetcher

	name    string
	address string
}

// Open loads the placemark, fills the edit buffer and requests its preview. destinationID
// is nil when there is no destination to add to or remove from. A placemark removed from
// the destination becomes a transient placemark of owner.
func Open(ctx context.Context, s store.Store, destinationID *uuid.UUID, owner string, placemarkID uuid.UUID, fetcher *preview.Fetcher) (*Controller, error) {
	p, err := s.GetPlacemark(ctx, placemarkID)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		store:         s,
		destinationID: destinationID,
		owner:         owner,
		placemark:     p,
		preview:       fetcher,
		name:          p.Name,
		address:       p.Address,
	}
	if fetcher != nil {
		fetcher.Request(p.Coordinate())
	}
	return c, nil
}

func (c *Controller) Placemark() model.Placemark {
	return c.placemark
}

// Edit replaces the buffer.
func (c *Controller) Edit(name, address string) {
	c.name = name
	c.address = address
}

func (c *Controller) IsChanged() bool {
	return c.name != c.placemark.Name || c.address != c.placemark.Address
}

func (c *Controller) InDestination() bool {
	return c.destinationID != nil && c.placemark.BelongsTo(*c.destinationID)
}

func (c *Controller) CanCommit() bool {
	return c.destinationID != nil && c.IsChanged()
}

// CanToggle reports whether the membership action is enabled. Removing is always allowed;
// adding needs a non-empty name and no pending edit.
func (c *Controller) CanToggle() bool {
	if c.destinationID == nil {
		return false
	}
	if c.InDestination() {
		return true
	}
	return strings.TrimSpace(c.name) != "" && !c.IsChanged()
}

// Commit writes the trimmed buffer to the placemark.
func (c *Controller) Commit(ctx context.Context) error {
	if !c.CanCommit() {
		return ErrActionDisabled
	}
	p := c.placemark
	p.Name = strings.TrimSpace(c.name)
	p.Address = strings.TrimSpace(c.address)
	if err := c.store.UpdatePlacemark(ctx, &p); err != nil {
		return err
	}
	c.placemark = p
	c.name, c.address = p.Name, p.Address
	return nil
}

// ToggleMembership attaches a transient placemark to the destination or detaches a
// permanent one. The caller closes the panel afterwards.
func (c *Controller) ToggleMembership(ctx context.Context) (model.Placemark, error) {
	if !c.CanToggle() {
		return model.Placemark{}, ErrActionDisabled
	}

	var (
		p   model.Placemark
		err error
	)
	if c.InDestination() {
		p, err = c.store.DetachPlacemark(ctx, c.placemark.ID, c.owner)
	} else {
		p, err = c.store.AttachPlacemark(ctx, c.placemark.ID, *c.destinationID)
	}
	if err != nil {
		return model.Placemark{}, err
	}
	c.placemark = p
	return p, nil
}

// Close stops any pending preview request.
func (c *Controller) Close() {
	if c.preview != nil {
		c.preview.Reset()
	}
}

// View is the render model of the panel.
type View struct {
	Placemark     model.Placemark     `json:"placemark"`
	Name          string              `json:"name"`
	Address       string              `json:"address"`
	IsChanged     bool                `json:"is_changed"`
	CanCommit     bool                `json:"can_commit"`
	InDestination bool                `json:"in_destination"`
	Action        MembershipAction    `json:"membership_action,omitempty"`
	CanToggle     bool                `json:"can_toggle_membership"`
	Preview       model.PreviewStatus `json:"preview"`
}

func (c *Controller) View() View {
	v := View{
		Placemark:     c.placemark,
		Name:          c.name,
		Address:       c.address,
		IsChanged:     c.IsChanged(),
		CanCommit:     c.CanCommit(),
		InDestination: c.InDestination(),
		CanToggle:     c.CanToggle(),
		Preview:       model.PreviewStatus{State: model.PreviewIdle},
	}
	if c.destinationID != nil {
		v.Action = ActionAdd
		if v.InDestination {
			v.Action = ActionRemove
		}
	}
	if c.preview != nil {
		v.Preview = c.preview.Status()
	}
	return v
}
