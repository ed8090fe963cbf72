package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/maruel/ksid"

	pinnerrors "github.com/maruel/pinn/internal/errors"
	"github.com/maruel/pinn/internal/models"
	"github.com/maruel/pinn/internal/storage"
)

// serverTimestamp is the sentinel the remote store replaces with its own
// clock on write.
var serverTimestamp = map[string]string{".sv": "timestamp"}

// ProgressFunc receives coarse sync milestones as a 0-100 percentage.
type ProgressFunc func(percent int, message string)

// Options tunes a single sync call. Nil id slices mean "everything"; an
// empty non-nil slice means "nothing of that kind".
type Options struct {
	NoteIDs  []string
	FlowIDs  []string
	Progress ProgressFunc
}

func (o *Options) report(percent int, message string) {
	if o != nil && o.Progress != nil {
		o.Progress(percent, message)
	}
}

// UploadResult summarizes a completed upload.
type UploadResult struct {
	Identifier string
	FilesCount int
	SyncID     string
}

// Engine runs uploads and downloads against the remote store. At most one
// sync runs at a time; a second caller gets an error instead of a duplicate
// sync.
type Engine struct {
	store    storage.Backend
	deviceID string

	// replaced in tests to point at a local server
	newClient func(models.CloudConfig) *Client

	mu     sync.Mutex
	active bool
}

// NewEngine creates an engine on top of the active storage backend. deviceID
// is this device's stable identifier, used as the remote record name when no
// existing record is discovered.
func NewEngine(store storage.Backend, deviceID string) *Engine {
	return &Engine{
		store:     store,
		deviceID:  deviceID,
		newClient: NewClient,
	}
}

func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return false
	}
	e.active = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
}

// config loads the cloud settings and checks they are usable.
func (e *Engine) config(ctx context.Context) (models.CloudConfig, error) {
	cfg, ok := e.store.ReadCloudConfig(ctx)
	if !ok || cfg.ProjectID == "" || cfg.APIKey == "" {
		return cfg, pinnerrors.New(pinnerrors.ErrValidation,
			"Cloud sync is not configured. Set the API key and project id first.")
	}
	return cfg, nil
}

// identifier picks the remote record to target. When the top-level listing
// is readable and holds exactly one record, all devices converge on it.
// Discovery is best effort; on any failure the local identifier is used.
func (e *Engine) identifier(ctx context.Context, c *Client) string {
	raw, err := c.Get(ctx, "users.json")
	if err != nil || raw == nil {
		return e.deviceID
	}
	var users map[string]json.RawMessage
	if err := json.Unmarshal(raw, &users); err != nil {
		slog.Debug("Unexpected users listing shape", "err", err)
		return e.deviceID
	}
	if _, ok := users[e.deviceID]; ok {
		return e.deviceID
	}
	if len(users) == 1 {
		for id := range users {
			slog.Info("Converging on existing remote record", "id", id)
			return id
		}
	}
	return e.deviceID
}

// collection maps a local file name to its remote path segment.
func collection(fileName string) string {
	return strings.TrimSuffix(fileName, ".json")
}

// extractContent unwraps the remote envelope; raw values written by older
// clients are used as-is.
func extractContent(raw json.RawMessage) string {
	var env models.RemoteEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Content != "" {
		return env.Content
	}
	return string(raw)
}

// fetchCollection downloads one collection for the record. Missing is not an
// error.
func (e *Engine) fetchCollection(ctx context.Context, c *Client, id, fileName string) (string, bool, error) {
	raw, err := c.Get(ctx, "users/"+id+"/"+collection(fileName)+".json")
	if err != nil {
		return "", false, err
	}
	if raw == nil {
		return "", false, nil
	}
	return extractContent(raw), true, nil
}

func decodeInto[T any](content string) []T {
	var items []T
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		slog.Warn("Ignoring malformed remote collection", "err", err)
		return nil
	}
	return items
}

// remoteState holds whatever could be fetched from the remote before a
// merge. Fields stay empty when the remote has nothing.
type remoteState struct {
	notes      []models.Note
	folders    []string
	flows      []models.Flow
	categories []string
}

// fetchRemote reads the mergeable collections. Failures are logged and
// treated as a first sync.
func (e *Engine) fetchRemote(ctx context.Context, c *Client, id string) remoteState {
	var st remoteState
	if content, ok, err := e.fetchCollection(ctx, c, id, models.FileNotes); err != nil {
		slog.Warn("Could not read remote notes, assuming first sync", "err", err)
	} else if ok {
		st.notes = decodeInto[models.Note](content)
	}
	if content, ok, err := e.fetchCollection(ctx, c, id, models.FileFolders); err != nil {
		slog.Warn("Could not read remote folders", "err", err)
	} else if ok {
		st.folders = decodeInto[string](content)
	}
	if content, ok, err := e.fetchCollection(ctx, c, id, models.FileFlows); err != nil {
		slog.Warn("Could not read remote flows", "err", err)
	} else if ok {
		st.flows = decodeInto[models.Flow](content)
	}
	if content, ok, err := e.fetchCollection(ctx, c, id, models.FileFlowCategories); err != nil {
		slog.Warn("Could not read remote flow categories", "err", err)
	} else if ok {
		st.categories = decodeInto[string](content)
	}
	return st
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (e *Engine) putCollection(ctx context.Context, c *Client, id, fileName, content string) error {
	env := models.RemoteEnvelope{
		Content:     content,
		FileName:    fileName,
		LastUpdated: serverTimestamp,
	}
	if err := c.Put(ctx, "users/"+id+"/"+collection(fileName)+".json", env); err != nil {
		return fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	return nil
}

// Upload merges the local collections with the remote record and writes the
// result back. Collections already written stay on the remote even when a
// later one fails.
func (e *Engine) Upload(ctx context.Context, opts *Options) (UploadResult, error) {
	if !e.tryAcquire() {
		return UploadResult{}, pinnerrors.New(pinnerrors.ErrValidation, "A sync is already running.")
	}
	defer e.release()

	opts.report(0, "starting sync")
	cfg, err := e.config(ctx)
	if err != nil {
		return UploadResult{}, err
	}
	c := e.newClient(cfg)
	id := e.identifier(ctx, c)

	remote := e.fetchRemote(ctx, c, id)
	opts.report(20, "fetched remote state")

	var noteIDs, flowIDs []string
	if opts != nil {
		noteIDs, flowIDs = opts.NoteIDs, opts.FlowIDs
	}
	// Filters restrict which local items participate. The remote sets stay
	// unfiltered so items present only remotely survive a selective upload.
	notes := MergeNotes(filterNotes(e.store.ReadNotes(ctx), noteIDs), remote.notes)
	folders := MergeStrings(e.store.ReadFolders(ctx), remote.folders)
	flows := MergeFlows(filterFlows(e.store.ReadFlows(ctx), flowIDs), remote.flows)
	categories := MergeStrings(e.store.ReadFlowCategories(ctx), remote.categories)
	opts.report(30, "merged collections")

	type upload struct {
		fileName string
		value    any
	}
	uploads := []upload{
		{models.FileNotes, notes},
		{models.FileFolders, folders},
		{models.FileFlows, flows},
		{models.FileFlowCategories, categories},
		{models.FileCloudConfig, cfg},
	}
	if theme, ok := e.store.ReadFileRaw(ctx, models.FileTheme); ok {
		uploads = append(uploads, upload{models.FileTheme, json.RawMessage(theme)})
	}

	for i, u := range uploads {
		content, err := encode(u.value)
		if err != nil {
			return UploadResult{}, fmt.Errorf("failed to encode %s: %w", u.fileName, err)
		}
		if err := e.putCollection(ctx, c, id, u.fileName, content); err != nil {
			return UploadResult{}, err
		}
		opts.report(30+(i+1)*60/len(uploads), "uploaded "+u.fileName)
	}

	res := UploadResult{
		Identifier: id,
		FilesCount: len(uploads),
		SyncID:     ksid.NewID().String(),
	}
	meta := models.SyncMetadata{
		LastSync:   serverTimestamp,
		FilesCount: res.FilesCount,
		SyncID:     res.SyncID,
	}
	if err := c.Put(ctx, "users/"+id+"/_metadata.json", meta); err != nil {
		slog.Warn("Sync metadata write failed", "err", err)
	}
	opts.report(100, "sync complete")
	return res, nil
}

// Download fetches whatever collections exist on the remote record and
// returns them as raw JSON strings keyed by local file name. Collections the
// remote does not have are simply absent.
func (e *Engine) Download(ctx context.Context, opts *Options) (map[string]string, error) {
	if !e.tryAcquire() {
		return nil, pinnerrors.New(pinnerrors.ErrValidation, "A sync is already running.")
	}
	defer e.release()

	opts.report(0, "starting download")
	cfg, err := e.config(ctx)
	if err != nil {
		return nil, err
	}
	c := e.newClient(cfg)
	id := e.identifier(ctx, c)

	out := make(map[string]string)
	var firstErr error
	for i, fileName := range models.CollectionFiles {
		content, ok, err := e.fetchCollection(ctx, c, id, fileName)
		if err != nil {
			slog.Warn("Could not download collection", "file", fileName, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			out[fileName] = content
		}
		opts.report((i+1)*100/len(models.CollectionFiles), "downloaded "+fileName)
	}
	if opts != nil {
		if raw, ok := out[models.FileNotes]; ok && opts.NoteIDs != nil {
			if filtered, err := encode(filterNotes(decodeInto[models.Note](raw), opts.NoteIDs)); err == nil {
				out[models.FileNotes] = filtered
			}
		}
		if raw, ok := out[models.FileFlows]; ok && opts.FlowIDs != nil {
			if filtered, err := encode(filterFlows(decodeInto[models.Flow](raw), opts.FlowIDs)); err == nil {
				out[models.FileFlows] = filtered
			}
		}
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Apply writes downloaded collections into the active local backend.
func (e *Engine) Apply(ctx context.Context, data map[string]string) error {
	for _, fileName := range models.CollectionFiles {
		content, ok := data[fileName]
		if !ok {
			continue
		}
		if err := e.store.WriteFileRaw(ctx, fileName, content); err != nil {
			return fmt.Errorf("failed to apply %s: %w", fileName, err)
		}
	}
	return nil
}

// ValidateConfig checks the settings and probes the remote store. Reaching
// any server counts, even one answering not-found: the point is proving the
// endpoint exists, not that data does.
func (e *Engine) ValidateConfig(ctx context.Context, cfg models.CloudConfig) error {
	if cfg.APIKey == "" || cfg.ProjectID == "" {
		return pinnerrors.New(pinnerrors.ErrValidation,
			"Both the API key and the project id are required.")
	}
	c := e.newClient(cfg)
	return c.Probe(ctx, "users/"+e.deviceID+"/_metadata.json")
}
