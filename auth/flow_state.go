package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/storage"
)

const (
	flowStateKey     = "storefront.auth_flow"
	flowStateTimeout = 15 * time.Minute
)

// FlowState is what the client remembers between sending the browser to the
// hosted UI and handling the redirect back.
type FlowState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	ReturnURL    string    `json:"return_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FlowStateRepo keeps at most one pending hosted login.
type FlowStateRepo interface {
	Upsert(ctx context.Context, state *FlowState) error
	Get(ctx context.Context, state string) (*FlowState, error)
	Delete(ctx context.Context) error
}

type storageFlowStateRepo struct {
	store storage.Store
	now   func() time.Time
}

// NewFlowStateRepo keeps the pending login in st so that it survives a
// restart between the redirect out and the redirect back.
func NewFlowStateRepo(st storage.Store, now func() time.Time) FlowStateRepo {
	if now == nil {
		now = time.Now
	}
	return &storageFlowStateRepo{store: st, now: now}
}

func (r *storageFlowStateRepo) Upsert(ctx context.Context, state *FlowState) error {
	if state == nil || state.State == "" {
		return errors.New("state cannot be empty")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "marshal flow state")
	}
	return r.store.Set(ctx, map[string]string{flowStateKey: string(data)})
}

// Get returns errors.ErrInvalidState when there is no pending login for state
// or it has timed out.
func (r *storageFlowStateRepo) Get(ctx context.Context, state string) (*FlowState, error) {
	if state == "" {
		return nil, errors.Wrapf(errors.ErrInvalidState, "state cannot be empty")
	}
	raw, err := r.store.Get(ctx, flowStateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrInvalidState, "no pending login")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read flow state")
	}

	var fs FlowState
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidState, "corrupt flow state")
	}
	if fs.State != state {
		return nil, errors.Wrapf(errors.ErrInvalidState, "state mismatch")
	}
	if r.now().Sub(fs.CreatedAt) > flowStateTimeout {
		return nil, errors.Wrapf(errors.ErrInvalidState, "pending login expired")
	}
	return &fs, nil
}

func (r *storageFlowStateRepo) Delete(ctx context.Context) error {
	return r.store.Delete(ctx, flowStateKey)
}
