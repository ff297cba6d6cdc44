// Package identity persists Internet Identities and the canister interface
// cache as preference trees.
//
// Identities are stored under the root key "IC":
//
//	IC -> Identities -> <anchor> -> {State, Passkey, CreationDate, ActivationDate?}
//
// The canister interface cache is stored under its own root key so the two
// never prune each other:
//
//	CanisterInterfaceCache -> <cid> -> {ActiveCanisterInterfaceType, <TYPE> -> {IDL}}
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	prefs "github.com/goliatone/go-prefs"
	"github.com/goliatone/go-prefs/pkg/state"
)

const (
	RootIC                     = "IC"
	RootCanisterInterfaceCache = "CanisterInterfaceCache"

	keyIdentities          = "Identities"
	keyState               = "State"
	keyPasskey             = "Passkey"
	keyCreationDate        = "CreationDate"
	keyActivationDate      = "ActivationDate"
	keyActiveInterfaceType = "ActiveCanisterInterfaceType"
	keyIDL                 = "IDL"
)

// Option configures a Persister.
type Option func(*Persister)

// WithLogger receives records skipped while loading.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persister) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithActor stamps every save with actorID.
func WithActor(actorID string) Option {
	return func(p *Persister) {
		p.actorID = actorID
	}
}

// Persister stores and restores identity data through a state.Repository.
type Persister struct {
	repo    *state.Repository
	logger  *slog.Logger
	actorID string
}

func NewPersister(repo *state.Repository, opts ...Option) *Persister {
	p := &Persister{
		repo:   repo,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// StoreInternetIdentities replaces the stored identities with ids. Keys of
// identities no longer present are pruned; an empty ids clears the IC
// namespace.
func (p *Persister) StoreInternetIdentities(ctx context.Context, ids []InternetIdentity) (state.Meta, error) {
	root := prefs.NewNode()
	if len(ids) > 0 {
		list := prefs.NewNode()
		for _, ii := range ids {
			node, err := encodeIdentity(ii)
			if err != nil {
				return state.Meta{}, err
			}
			if err := list.SetChildObject(ii.Anchor, node); err != nil {
				return state.Meta{}, fmt.Errorf("identity: anchor %q: %w", ii.Anchor, err)
			}
		}
		if err := root.SetChildObject(keyIdentities, list); err != nil {
			return state.Meta{}, err
		}
	}
	return p.repo.Save(ctx, state.Ref{Namespace: RootIC}, root, state.Meta{ActorID: p.actorID})
}

func encodeIdentity(ii InternetIdentity) (*prefs.Node, error) {
	if ii.Anchor == "" {
		return nil, fmt.Errorf("identity: anchor is required")
	}
	if _, ok := iiStateNames[ii.State]; !ok {
		return nil, fmt.Errorf("identity: anchor %q has invalid state %d", ii.Anchor, int(ii.State))
	}
	if ii.PasskeyPEM == "" {
		return nil, fmt.Errorf("identity: anchor %q has no passkey", ii.Anchor)
	}

	n := prefs.NewNode()
	if err := n.SetString(keyState, ii.State.String()); err != nil {
		return nil, err
	}
	if err := n.SetString(keyPasskey, ii.PasskeyPEM); err != nil {
		return nil, fmt.Errorf("identity: anchor %q passkey: %w", ii.Anchor, err)
	}
	if err := n.SetLong(keyCreationDate, ii.CreationDate.UnixMilli()); err != nil {
		return nil, err
	}
	if ii.ActivationDate != nil {
		if err := n.SetLong(keyActivationDate, ii.ActivationDate.UnixMilli()); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// InternetIdentities returns the stored identities ordered by anchor.
// Records with an unknown state or without a creation date are logged and
// skipped.
func (p *Persister) InternetIdentities(ctx context.Context) ([]InternetIdentity, error) {
	root, _, ok, err := p.repo.Load(ctx, state.Ref{Namespace: RootIC})
	if err != nil || !ok {
		return nil, err
	}
	list, ok := root.GetChildObject(keyIdentities)
	if !ok {
		return nil, nil
	}

	var out []InternetIdentity
	for _, anchor := range list.ChildObjectKeys() {
		node, _ := list.GetChildObject(anchor)
		ii, ok := p.decodeIdentity(ctx, anchor, node)
		if !ok {
			continue
		}
		out = append(out, ii)
	}
	return out, nil
}

func (p *Persister) decodeIdentity(ctx context.Context, anchor string, n *prefs.Node) (InternetIdentity, bool) {
	name, _ := n.GetString(keyState)
	st, ok := ParseIiState(name)
	if !ok {
		p.logger.ErrorContext(ctx, "identity: unknown state, skipping", "anchor", anchor, "state", name)
		return InternetIdentity{}, false
	}
	created, ok := n.GetLong(keyCreationDate)
	if !ok {
		p.logger.ErrorContext(ctx, "identity: missing creation date, skipping", "anchor", anchor)
		return InternetIdentity{}, false
	}
	passkey, _ := n.GetString(keyPasskey)

	ii := InternetIdentity{
		Anchor:       anchor,
		State:        st,
		PasskeyPEM:   passkey,
		CreationDate: time.UnixMilli(created).UTC(),
	}
	if activated, ok := n.GetLong(keyActivationDate); ok {
		at := time.UnixMilli(activated).UTC()
		ii.ActivationDate = &at
	}
	return ii, true
}

// StoreCanisterInterfaceCache replaces the stored cache with cache.
func (p *Persister) StoreCanisterInterfaceCache(ctx context.Context, cache map[string]CanisterCacheInfo) (state.Meta, error) {
	root := prefs.NewNode()
	cids := make([]string, 0, len(cache))
	for cid := range cache {
		cids = append(cids, cid)
	}
	sort.Strings(cids)

	for _, cid := range cids {
		info := cache[cid]
		if _, ok := interfaceTypeNames[info.Active]; !ok {
			return state.Meta{}, fmt.Errorf("identity: canister %q has invalid active interface type %d", cid, int(info.Active))
		}
		node := prefs.NewNode()
		if err := node.SetString(keyActiveInterfaceType, info.Active.String()); err != nil {
			return state.Meta{}, err
		}
		for _, t := range sortedInterfaceTypes(info.Interfaces) {
			if _, ok := interfaceTypeNames[t]; !ok {
				return state.Meta{}, fmt.Errorf("identity: canister %q has invalid interface type %d", cid, int(t))
			}
			iface := prefs.NewNode()
			if err := iface.SetString(keyIDL, info.Interfaces[t]); err != nil {
				return state.Meta{}, fmt.Errorf("identity: canister %q %s IDL: %w", cid, t, err)
			}
			if err := node.SetChildObject(t.String(), iface); err != nil {
				return state.Meta{}, err
			}
		}
		if err := root.SetChildObject(cid, node); err != nil {
			return state.Meta{}, fmt.Errorf("identity: canister %q: %w", cid, err)
		}
	}
	return p.repo.Save(ctx, state.Ref{Namespace: RootCanisterInterfaceCache}, root, state.Meta{ActorID: p.actorID})
}

// CanisterInterfaceCache returns the stored cache. An unknown active type
// is logged and left as InterfaceUnknown; an interface stored under an
// unknown type is logged and dropped.
func (p *Persister) CanisterInterfaceCache(ctx context.Context) (map[string]CanisterCacheInfo, error) {
	out := map[string]CanisterCacheInfo{}
	root, _, ok, err := p.repo.Load(ctx, state.Ref{Namespace: RootCanisterInterfaceCache})
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}

	for _, cid := range root.ChildObjectKeys() {
		node, _ := root.GetChildObject(cid)
		info := CanisterCacheInfo{Interfaces: map[InterfaceType]string{}}

		name, _ := node.GetString(keyActiveInterfaceType)
		if active, ok := ParseInterfaceType(name); ok {
			info.Active = active
		} else {
			p.logger.ErrorContext(ctx, "identity: unknown active interface type", "canister", cid, "type", name)
		}
		for _, typeName := range node.ChildObjectKeys() {
			t, ok := ParseInterfaceType(typeName)
			if !ok {
				p.logger.ErrorContext(ctx, "identity: unknown interface type, IDL dropped", "canister", cid, "type", typeName)
				continue
			}
			iface, _ := node.GetChildObject(typeName)
			idl, _ := iface.GetString(keyIDL)
			info.Interfaces[t] = idl
		}
		out[cid] = info
	}
	return out, nil
}

// ClearCanisterInterfaceCache removes the stored cache.
func (p *Persister) ClearCanisterInterfaceCache(ctx context.Context) error {
	_, err := p.repo.Clear(ctx, state.Ref{Namespace: RootCanisterInterfaceCache})
	return err
}
