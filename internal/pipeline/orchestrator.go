// Package pipeline drives one media file through identification and
// reconciliation as an explicit state machine, plus the batch coordinator
// that fans a file list out over pipeline instances.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"substream/internal/catalog"
	"substream/internal/identification"
	"substream/internal/identification/tmdb"
	"substream/internal/logging"
	"substream/internal/media"
	"substream/internal/services"
	"substream/internal/services/bing"
)

// State identifies a pipeline step.
type State string

const (
	StateLookup          State = "LOOKUP"
	StateExtract         State = "EXTRACT"
	StateCreateTransient State = "CREATE_TRANSIENT"
	StateSearch          State = "SEARCH"
	StateIdentify        State = "IDENTIFY"
	StateResolve         State = "RESOLVE"
	StateReconcile       State = "RECONCILE"
	StateRollback        State = "ROLLBACK"
	StateDone            State = "DONE"
)

// RollsBackOnFailure reports whether a step failure must delete the
// transient entry before the instance terminates. Steps before the
// transient insert have nothing to clean up.
func (s State) RollsBackOnFailure() bool {
	switch s {
	case StateSearch, StateIdentify, StateResolve, StateReconcile:
		return true
	default:
		return false
	}
}

// Terminal reports whether the instance has finished.
func (s State) Terminal() bool {
	return s == StateDone
}

// Instance is the full per-file pipeline state. It is serialized between
// steps so a durable scheduler can suspend and resume at any boundary.
type Instance struct {
	MediaID  string `json:"mediaId"`
	OwnerID  string `json:"ownerId"`
	FilePath string `json:"filePath"`
	State    State  `json:"state"`

	Basic            identification.BasicMetadata `json:"basic"`
	Results          []bing.Result                `json:"results,omitempty"`
	IMDbID           string                       `json:"imdbId,omitempty"`
	Resolved         identification.ResolvedEntry `json:"resolved,omitempty"`
	Season           *tmdb.SeasonDetails          `json:"season,omitempty"`
	TransientCreated bool                         `json:"transientCreated"`

	Entry      *media.Entry `json:"entry,omitempty"`
	Identified bool         `json:"identified"`
}

// NewInstance prepares a pipeline instance at its initial state.
func NewInstance(mediaID, ownerID, filePath string) *Instance {
	return &Instance{
		MediaID:  mediaID,
		OwnerID:  ownerID,
		FilePath: filePath,
		State:    StateLookup,
	}
}

// Reconciler is the reconciliation engine contract consumed by the
// orchestrator.
type Reconciler interface {
	Reconcile(ctx context.Context, mediaID, ownerID string, basic identification.BasicMetadata, imdbID string, resolved identification.ResolvedEntry, season *tmdb.SeasonDetails) (*media.Entry, error)
}

// Orchestrator executes pipeline steps against the store and the external
// identification services.
type Orchestrator struct {
	store     catalog.Store
	extractor *identification.Extractor
	searcher  bing.Searcher
	resolver  *identification.Resolver
	engine    Reconciler
	logger    *slog.Logger
}

// NewOrchestrator wires the pipeline's collaborators together.
func NewOrchestrator(store catalog.Store, extractor *identification.Extractor, searcher bing.Searcher, resolver *identification.Resolver, engine Reconciler, logger *slog.Logger) (*Orchestrator, error) {
	if store == nil || extractor == nil || searcher == nil || resolver == nil || engine == nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new", "all collaborators are required", nil)
	}
	return &Orchestrator{
		store:     store,
		extractor: extractor,
		searcher:  searcher,
		resolver:  resolver,
		engine:    engine,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Advance executes the step named by the instance's current state and
// mutates the instance toward the next state. A returned error leaves the
// state unchanged so the step can be retried; the caller decides when to
// give up and route to ROLLBACK via RollsBackOnFailure.
func (o *Orchestrator) Advance(ctx context.Context, inst *Instance) error {
	ctx = services.WithMediaID(ctx, inst.MediaID)
	ctx = services.WithOwnerID(ctx, inst.OwnerID)
	ctx = services.WithStep(ctx, string(inst.State))

	switch inst.State {
	case StateLookup:
		return o.stepLookup(ctx, inst)
	case StateExtract:
		return o.stepExtract(ctx, inst)
	case StateCreateTransient:
		return o.stepCreateTransient(ctx, inst)
	case StateSearch:
		return o.stepSearch(ctx, inst)
	case StateIdentify:
		o.stepIdentify(ctx, inst)
		return nil
	case StateResolve:
		o.stepResolve(ctx, inst)
		return nil
	case StateReconcile:
		return o.stepReconcile(ctx, inst)
	case StateRollback:
		return o.stepRollback(ctx, inst)
	case StateDone:
		return nil
	default:
		return services.Wrap(services.ErrValidation, "pipeline", "advance",
			fmt.Sprintf("unknown state %q", inst.State), nil)
	}
}

// Run drives the instance to a terminal state in one pass, routing step
// failures to ROLLBACK where the state machine allows it. Durable callers
// use Advance directly so they can retry individual steps.
func (o *Orchestrator) Run(ctx context.Context, inst *Instance) error {
	ctx = services.WithMediaID(ctx, inst.MediaID)
	ctx = services.WithOwnerID(ctx, inst.OwnerID)
	for !inst.State.Terminal() {
		if err := o.Advance(ctx, inst); err != nil {
			if !inst.State.RollsBackOnFailure() {
				return err
			}
			logging.WithContext(ctx, o.logger).Warn("step failed, rolling back",
				logging.String("state", string(inst.State)),
				logging.Error(err))
			inst.State = StateRollback
		}
	}
	return nil
}

// Idempotent re-ingestion: a terminal entry for this exact file short
// circuits the whole pipeline.
func (o *Orchestrator) stepLookup(ctx context.Context, inst *Instance) error {
	existing, err := o.store.FindByLocation(ctx, inst.OwnerID, inst.FilePath)
	if err != nil {
		return err
	}
	if existing != nil && !existing.IsTransient() {
		inst.Entry = existing
		inst.Identified = true
		inst.State = StateDone
		logging.WithContext(ctx, o.logger).Info("file already cataloged",
			logging.String("path", inst.FilePath))
		return nil
	}
	inst.State = StateExtract
	return nil
}

func (o *Orchestrator) stepExtract(ctx context.Context, inst *Instance) error {
	inst.Basic = o.extractor.Extract(ctx, inst.FilePath)
	inst.State = StateCreateTransient
	return nil
}

func (o *Orchestrator) stepCreateTransient(ctx context.Context, inst *Instance) error {
	entry := &media.Entry{
		ID:           inst.MediaID,
		OwnerID:      inst.OwnerID,
		Title:        inst.Basic.DisplayTitle,
		Category:     inst.Basic.Category,
		FileLocation: inst.FilePath,
	}
	if _, err := o.store.Insert(ctx, entry); err != nil {
		if errors.Is(err, catalog.ErrDuplicateLocation) {
			// Raced another ingest of the same path. A terminal entry wins
			// the race for us; an in-flight transient means this instance
			// has nothing left to do.
			existing, lookupErr := o.store.FindByLocation(ctx, inst.OwnerID, inst.FilePath)
			if lookupErr == nil && existing != nil && !existing.IsTransient() {
				inst.Entry = existing
				inst.Identified = true
				inst.State = StateDone
				return nil
			}
			return services.Wrap(services.ErrValidation, "pipeline", "create transient",
				"file is already being processed", err)
		}
		return err
	}
	inst.TransientCreated = true
	inst.State = StateSearch
	return nil
}

func (o *Orchestrator) stepSearch(ctx context.Context, inst *Instance) error {
	results, err := o.searcher.Search(ctx, searchTerm(inst.Basic))
	if err != nil {
		return services.Wrap(services.ErrConnectivity, "pipeline", "search", "", err)
	}
	inst.Results = results
	inst.State = StateIdentify
	return nil
}

// stepIdentify ranks the search results. No candidate is a normal outcome,
// not an error: the instance rolls back and terminates unidentified.
func (o *Orchestrator) stepIdentify(ctx context.Context, inst *Instance) {
	inst.IMDbID = identification.IdentifyIMDbID(inst.Results)
	inst.Results = nil
	if inst.IMDbID == "" {
		logging.WithContext(ctx, o.logger).Info("no identifiable candidate",
			logging.String("title", inst.Basic.Title))
		inst.State = StateRollback
		return
	}
	inst.State = StateResolve
}

// stepResolve fetches catalog detail. The resolver absorbs its own HTTP
// failures, so an unresolvable identifier also ends as unidentified.
func (o *Orchestrator) stepResolve(ctx context.Context, inst *Instance) {
	if inst.Basic.HasEpisode() {
		resolution := o.resolver.ResolveEpisodes(ctx, inst.IMDbID, inst.Basic.SeasonNumber())
		if resolution == nil {
			inst.State = StateRollback
			return
		}
		inst.Resolved = resolution.Show
		inst.Season = resolution.Season
	} else {
		inst.Resolved = o.resolver.ResolveEntry(ctx, inst.IMDbID)
		if inst.Resolved.Empty() {
			inst.State = StateRollback
			return
		}
	}
	inst.State = StateReconcile
}

func (o *Orchestrator) stepReconcile(ctx context.Context, inst *Instance) error {
	entry, err := o.engine.Reconcile(ctx, inst.MediaID, inst.OwnerID, inst.Basic, inst.IMDbID, inst.Resolved, inst.Season)
	if err != nil {
		return err
	}
	inst.Entry = entry
	inst.Identified = true
	inst.State = StateDone
	return nil
}

// stepRollback removes the transient entry so no orphan survives the run.
// A failed delete is returned for retry; the no-orphan guarantee depends
// on this step eventually succeeding.
func (o *Orchestrator) stepRollback(ctx context.Context, inst *Instance) error {
	if inst.TransientCreated {
		err := o.store.Delete(ctx, inst.OwnerID, inst.MediaID)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return err
		}
		inst.TransientCreated = false
	}
	inst.Entry = nil
	inst.Identified = false
	inst.State = StateDone
	return nil
}

// searchTerm builds the web query from the extracted heuristics: short
// title, season/episode hint when present, then the category.
func searchTerm(basic identification.BasicMetadata) string {
	parts := []string{basic.Title}
	if basic.EpisodeHint != "" {
		parts = append(parts, basic.EpisodeHint)
	}
	parts = append(parts, string(basic.Category))
	return strings.Join(parts, " ")
}
