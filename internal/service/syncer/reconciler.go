// Package syncer reconciles the local dataset with its remote mirror.
//
// Conflicts are resolved per document: the side with the newer lastModified
// wins as a whole. A guard refuses to overwrite a large dataset with one less
// than half its size unless the caller forces it.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/observability"
)

// Action is what a sync run did.
type Action string

const (
	ActionPull    Action = "pull"
	ActionPush    Action = "push"
	ActionNone    Action = "none"
	ActionSkipped Action = "skipped"
	ActionCreated Action = "created"
)

// guardMinItems is the dataset size above which the shrink guard applies.
const guardMinItems = 10

// Result describes one sync run.
type Result struct {
	Action      Action `json:"action"`
	LocalItems  int    `json:"localItems"`
	RemoteItems int    `json:"remoteItems"`
	Message     string `json:"message"`
	GistID      string `json:"gistId,omitempty"`
	LastSync    string `json:"lastSync,omitempty"`
}

// Status summarizes the sync configuration and local dataset.
type Status struct {
	Configured      bool   `json:"configured"`
	HasToken        bool   `json:"hasToken"`
	GistID          string `json:"gistId,omitempty"`
	AutoSync        bool   `json:"autoSync"`
	IntervalMinutes int    `json:"intervalMinutes"`
	LastSync        string `json:"lastSync,omitempty"`
	LocalItems      int    `json:"localItems"`
	LocalModified   string `json:"localModified,omitempty"`
}

// ConfigureRequest changes the sync configuration. Nil fields are left as is.
type ConfigureRequest struct {
	Token           *string
	GistID          *string
	AutoSync        *bool
	IntervalMinutes *int
}

// RemoteMirror is the remote copy of the dataset.
type RemoteMirror interface {
	ValidateCredential(ctx context.Context, token string) error
	ValidateRemoteAccessible(ctx context.Context, token, gistID string) error
	Create(ctx context.Context, token string, doc *domain.Document) (string, error)
	Read(ctx context.Context, token, gistID string) (*domain.Document, error)
	Write(ctx context.Context, token, gistID string, doc *domain.Document) error
}

// LocalStore is the local copy of the dataset.
type LocalStore interface {
	Get() (*domain.Document, error)
	Replace(ctx context.Context, doc *domain.Document) error
}

// Reconciler runs pull, push and smart sync.
type Reconciler struct {
	local  LocalStore
	remote RemoteMirror
	config *config.SyncConfigStore

	inProgress atomic.Bool

	mu        sync.RWMutex
	listeners []func(config.SyncConfig)

	clock     func() time.Time
	collector *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(local LocalStore, remote RemoteMirror, syncConfig *config.SyncConfigStore,
	collector *observability.Collector, tracer trace.Tracer, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		local:     local,
		remote:    remote,
		config:    syncConfig,
		clock:     time.Now,
		collector: collector,
		tracer:    observability.TracerOrNoop(tracer),
		logger:    logger.Named("syncer"),
	}
}

// OnConfigChange registers a callback run after Configure or CreateRemote
// change the sync configuration.
func (r *Reconciler) OnConfigChange(fn func(config.SyncConfig)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Reconciler) notify(cfg config.SyncConfig) {
	r.mu.RLock()
	listeners := append([]func(config.SyncConfig){}, r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// Status reports the current sync configuration and local dataset size.
func (r *Reconciler) Status() (Status, error) {
	cfg := r.config.Get()
	doc, err := r.local.Get()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Configured:      cfg.HasCredentials(),
		HasToken:        cfg.Token != "",
		GistID:          cfg.GistID,
		AutoSync:        cfg.AutoSync,
		IntervalMinutes: cfg.IntervalMinutes,
		LastSync:        cfg.LastSync,
		LocalItems:      doc.TotalItems(),
		LocalModified:   doc.LastModified,
	}, nil
}

// Configure validates and stores new sync settings. A new token is checked
// against the remote API, and a new gist id is checked for access.
func (r *Reconciler) Configure(ctx context.Context, req ConfigureRequest) (Status, error) {
	current := r.config.Get()

	token := current.Token
	if req.Token != nil {
		token = *req.Token
		if token != "" {
			if err := r.remote.ValidateCredential(ctx, token); err != nil {
				return Status{}, err
			}
		}
	}
	if req.GistID != nil && *req.GistID != "" && token != "" {
		if err := r.remote.ValidateRemoteAccessible(ctx, token, *req.GistID); err != nil {
			return Status{}, err
		}
	}

	cfg, err := r.config.Update(func(c *config.SyncConfig) {
		if req.Token != nil {
			c.Token = *req.Token
		}
		if req.GistID != nil {
			c.GistID = *req.GistID
		}
		if req.AutoSync != nil {
			c.AutoSync = *req.AutoSync
		}
		if req.IntervalMinutes != nil {
			c.IntervalMinutes = max(*req.IntervalMinutes, config.MinSyncInterval)
		}
	})
	if err != nil {
		return Status{}, err
	}

	r.logger.Info("Sync configuration updated",
		zap.Bool("auto_sync", cfg.AutoSync),
		zap.Int("interval_minutes", cfg.IntervalMinutes),
		zap.Bool("has_remote", cfg.GistID != ""),
	)
	r.notify(cfg)
	return r.Status()
}

// CreateRemote uploads the local dataset to a new private gist and records
// its id.
func (r *Reconciler) CreateRemote(ctx context.Context) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "sync.create_remote")
	defer span.End()

	cfg := r.config.Get()
	if cfg.Token == "" {
		return nil, r.fail(span, "create", notConfigured("A token is required to create the remote copy"))
	}
	if cfg.GistID != "" {
		return nil, r.fail(span, "create", apperrors.Conflict(apperrors.CodeSyncNotConfigured, "A remote copy is already configured").
			WithResource(cfg.GistID).
			Build())
	}

	doc, err := r.local.Get()
	if err != nil {
		return nil, r.fail(span, "create", err)
	}
	id, err := r.remote.Create(ctx, cfg.Token, doc)
	if err != nil {
		return nil, r.fail(span, "create", err)
	}

	lastSync := domain.FormatTimestamp(r.clock())
	updated, err := r.config.Update(func(c *config.SyncConfig) {
		c.GistID = id
		c.LastSync = lastSync
	})
	if err != nil {
		return nil, r.fail(span, "create", err)
	}
	r.notify(updated)
	r.collector.RecordSync(string(ActionCreated), "success")

	return &Result{
		Action:      ActionCreated,
		LocalItems:  doc.TotalItems(),
		RemoteItems: doc.TotalItems(),
		GistID:      id,
		LastSync:    lastSync,
		Message:     fmt.Sprintf("Created remote copy with %d items", doc.TotalItems()),
	}, nil
}

// Pull replaces the local dataset with the remote copy.
func (r *Reconciler) Pull(ctx context.Context, force bool) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "sync.pull", trace.WithAttributes(attribute.Bool("sync.force", force)))
	defer span.End()

	cfg, err := r.credentials()
	if err != nil {
		return nil, r.fail(span, "pull", err)
	}
	remoteDoc, err := r.remote.Read(ctx, cfg.Token, cfg.GistID)
	if err != nil {
		return nil, r.fail(span, "pull", err)
	}
	localDoc, err := r.local.Get()
	if err != nil {
		return nil, r.fail(span, "pull", err)
	}

	res, err := r.pull(ctx, localDoc, remoteDoc, force)
	if err != nil {
		return nil, r.fail(span, "pull", err)
	}
	return res, nil
}

// Push replaces the remote copy with the local dataset. When the remote copy
// is missing there is nothing to protect and the guard is skipped. A remote
// copy that exists but cannot be decoded is only overwritten when forced.
func (r *Reconciler) Push(ctx context.Context, force bool) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "sync.push", trace.WithAttributes(attribute.Bool("sync.force", force)))
	defer span.End()

	cfg, err := r.credentials()
	if err != nil {
		return nil, r.fail(span, "push", err)
	}
	localDoc, err := r.local.Get()
	if err != nil {
		return nil, r.fail(span, "push", err)
	}
	remoteDoc, err := r.remote.Read(ctx, cfg.Token, cfg.GistID)
	switch {
	case err == nil, remoteMissing(err):
	case unreadable(err) && force:
		r.logger.Warn("Overwriting unreadable remote copy", zap.String("gist_id", cfg.GistID), zap.Error(err))
	case unreadable(err):
		return nil, r.fail(span, "push", unreadableRemote(cfg.GistID, err))
	default:
		return nil, r.fail(span, "push", err)
	}

	res, err := r.push(ctx, cfg, localDoc, remoteDoc, force)
	if err != nil {
		return nil, r.fail(span, "push", err)
	}
	return res, nil
}

// SmartSync pulls when the remote copy is newer, pushes when the local one
// is newer and does nothing when they match. A missing remote copy is
// bootstrapped from local; an unreadable one is left alone and reported.
// Overlapping calls return ActionSkipped.
func (r *Reconciler) SmartSync(ctx context.Context) (*Result, error) {
	if !r.inProgress.CompareAndSwap(false, true) {
		r.collector.RecordSync(string(ActionSkipped), "success")
		return &Result{Action: ActionSkipped, Message: "A sync is already running"}, nil
	}
	defer r.inProgress.Store(false)

	ctx, span := r.tracer.Start(ctx, "sync.smart")
	defer span.End()

	cfg, err := r.credentials()
	if err != nil {
		return nil, r.fail(span, "smart", err)
	}
	localDoc, err := r.local.Get()
	if err != nil {
		return nil, r.fail(span, "smart", err)
	}
	remoteDoc, err := r.remote.Read(ctx, cfg.Token, cfg.GistID)
	if err != nil {
		if unreadable(err) {
			return nil, r.fail(span, "smart", unreadableRemote(cfg.GistID, err))
		}
		if !remoteMissing(err) {
			return nil, r.fail(span, "smart", err)
		}
		r.logger.Info("Remote copy missing, pushing local data", zap.Error(err))
		remoteDoc = nil
	}

	var res *Result
	switch decide(localDoc, remoteDoc) {
	case ActionPull:
		res, err = r.pull(ctx, localDoc, remoteDoc, false)
	case ActionPush:
		res, err = r.push(ctx, cfg, localDoc, remoteDoc, false)
	default:
		r.collector.RecordSync(string(ActionNone), "success")
		res = &Result{
			Action:      ActionNone,
			LocalItems:  localDoc.TotalItems(),
			RemoteItems: remoteDoc.TotalItems(),
			Message:     "Already in sync",
		}
	}
	if err != nil {
		return nil, r.fail(span, "smart", err)
	}
	span.SetAttributes(attribute.String("sync.action", string(res.Action)))
	return res, nil
}

// decide picks the smart sync action. A nil remote means bootstrap by push.
func decide(localDoc, remoteDoc *domain.Document) Action {
	if remoteDoc == nil {
		return ActionPush
	}
	localAt, remoteAt := localDoc.ModifiedAt(), remoteDoc.ModifiedAt()
	switch {
	case remoteAt.After(localAt):
		return ActionPull
	case localAt.After(remoteAt):
		return ActionPush
	default:
		return ActionNone
	}
}

// CheckGuard returns a DATA_LOSS_RISK error when incoming holds less than
// half the items of existing and existing is above the guard threshold.
func CheckGuard(incoming, existing int, force bool, direction string) error {
	if force || existing <= guardMinItems {
		return nil
	}
	if float64(incoming) >= float64(existing)/2 {
		return nil
	}
	return apperrors.DataLossRisk(incoming, existing,
		fmt.Sprintf("%s would replace %d items with %d; retry with force to proceed", direction, existing, incoming)).
		Build()
}

func (r *Reconciler) pull(ctx context.Context, localDoc, remoteDoc *domain.Document, force bool) (*Result, error) {
	localItems, remoteItems := localDoc.TotalItems(), remoteDoc.TotalItems()
	if err := CheckGuard(remoteItems, localItems, force, "Pull"); err != nil {
		return nil, err
	}
	if err := r.local.Replace(ctx, remoteDoc); err != nil {
		return nil, err
	}

	lastSync := r.markSynced()
	r.collector.RecordSync(string(ActionPull), "success")
	r.logger.Info("Pulled remote copy",
		zap.Int("local_items", localItems),
		zap.Int("remote_items", remoteItems),
		zap.Bool("forced", force),
	)
	return &Result{
		Action:      ActionPull,
		LocalItems:  remoteItems,
		RemoteItems: remoteItems,
		LastSync:    lastSync,
		Message:     fmt.Sprintf("Pulled %d items from the remote copy", remoteItems),
	}, nil
}

func (r *Reconciler) push(ctx context.Context, cfg config.SyncConfig, localDoc, remoteDoc *domain.Document, force bool) (*Result, error) {
	localItems := localDoc.TotalItems()
	remoteItems := 0
	if remoteDoc != nil {
		remoteItems = remoteDoc.TotalItems()
		if err := CheckGuard(localItems, remoteItems, force, "Push"); err != nil {
			return nil, err
		}
	}
	if err := r.remote.Write(ctx, cfg.Token, cfg.GistID, localDoc); err != nil {
		return nil, err
	}

	lastSync := r.markSynced()
	r.collector.RecordSync(string(ActionPush), "success")
	r.logger.Info("Pushed local data",
		zap.Int("local_items", localItems),
		zap.Int("remote_items", remoteItems),
		zap.Bool("forced", force),
	)
	return &Result{
		Action:      ActionPush,
		LocalItems:  localItems,
		RemoteItems: localItems,
		LastSync:    lastSync,
		Message:     fmt.Sprintf("Pushed %d items to the remote copy", localItems),
	}, nil
}

func (r *Reconciler) markSynced() string {
	lastSync := domain.FormatTimestamp(r.clock())
	if _, err := r.config.Update(func(c *config.SyncConfig) { c.LastSync = lastSync }); err != nil {
		r.logger.Warn("Failed to record last sync time", zap.Error(err))
	}
	return lastSync
}

func (r *Reconciler) credentials() (config.SyncConfig, error) {
	cfg := r.config.Get()
	if !cfg.HasCredentials() {
		return cfg, notConfigured("Sync needs a token and a remote id")
	}
	return cfg, nil
}

func (r *Reconciler) fail(span trace.Span, action string, err error) error {
	outcome := "error"
	if apperrors.IsDataLossRisk(err) {
		outcome = "guarded"
	}
	r.collector.RecordSync(action, outcome)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// remoteMissing reports errors after which the remote copy is treated as
// absent: the gist or its data file does not exist.
func remoteMissing(err error) bool {
	return apperrors.IsNotFound(err)
}

// unreadable reports a remote copy that exists but does not decode as a
// document. Its size is unknown, so the guard cannot vouch for overwriting it.
func unreadable(err error) bool {
	ue, ok := apperrors.As(err)
	return ok && ue.Code == apperrors.CodeRemoteBadPayload
}

func unreadableRemote(gistID string, cause error) error {
	return apperrors.NewError(apperrors.ErrorTypeDataLossRisk, apperrors.CodeSyncDataLossRisk,
		"Remote copy is unreadable; push with force to overwrite it").
		WithSeverity(apperrors.SeverityHigh).
		WithResource(gistID).
		WithCause(cause).
		Build()
}

func notConfigured(msg string) error {
	return apperrors.Validation(apperrors.CodeSyncNotConfigured, msg).Build()
}
