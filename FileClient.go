package fsbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tizianocitro/fsbox/internal/caching"
	"github.com/tizianocitro/fsbox/internal/loadbalancing"
	"github.com/tizianocitro/fsbox/internal/validation"
	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/filestorage"
)

// FileClient spreads objects over several storages. Writes go to every main
// storage following the replication mode, reads are served by one storage
// chosen by the load balancing strategy and may be cached.
type FileClient struct {
	storages        []filestorage.FileStorage
	replicationMode ReplicationMode
	lbStrategy      LoadBalancingStrategy
	cache           *caching.FileCache
	logger          logrus.FieldLogger

	lbMu sync.Mutex
	lb   loadbalancing.LoadBalancer

	// background replication started by ASYNC_REPLICATION writes
	pending sync.WaitGroup
}

func NewFileClient(replicationMode ReplicationMode, loadBalancingStrategy LoadBalancingStrategy, storages ...filestorage.FileStorage) *FileClient {
	return &FileClient{
		storages:        storages,
		replicationMode: replicationMode,
		lbStrategy:      loadBalancingStrategy,
		logger:          logrus.StandardLogger(),
	}
}

// SetLogger replaces the logger, nil restores the standard logrus logger.
func (f *FileClient) SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	f.logger = logger
}

// Wait blocks until the background writes of ASYNC_REPLICATION are done.
func (f *FileClient) Wait() {
	f.pending.Wait()
}

func (f *FileClient) mains() []filestorage.FileStorage {
	var mains []filestorage.FileStorage
	for _, s := range f.storages {
		if s.GetConnectionProperties().IsMainInstance {
			mains = append(mains, s)
		}
	}
	return mains
}

// PutObject uploads an object to all main storages based on the replication mode.
// In ASYNC_REPLICATION mode, it attempts to write to one main storage and then fans out
// the write to other main storages in the background.
// In SYNC_REPLICATION mode, it writes to all main storages and collects errors.
func (f *FileClient) PutObject(ctx context.Context, container, remote string, reader io.Reader) error {
	if reader == nil {
		return fmt.Errorf("reader is nil")
	}
	if err := validation.Validate(container, remote); err != nil {
		return err
	}

	buf, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read input stream: %w", err)
	}

	mains := f.mains()
	if len(mains) == 0 {
		return errors.New("no main instance found for PutObject operation")
	}

	switch f.replicationMode {
	case ASYNC_REPLICATION:
		first := -1
		var errs []error
		for i, storage := range mains {
			err := storage.PutObject(ctx, container, remote, bytes.NewReader(buf))
			if err == nil {
				first = i
				break
			}
			errs = append(errs, fmt.Errorf("[async] PutObject failed on %T: %w", storage, err))
		}
		if first < 0 {
			return fmt.Errorf("[async] PutObject failed on all main storages: %w", errors.Join(errs...))
		}

		for _, storage := range mains[first+1:] {
			s := storage
			f.pending.Add(1)
			go func() {
				defer f.pending.Done()
				if err := s.PutObject(context.Background(), container, remote, bytes.NewReader(buf)); err != nil {
					f.logger.WithFields(logrus.Fields{
						"container": container,
						"object":    remote,
						"storage":   fmt.Sprintf("%T", s),
					}).WithError(err).Warn("[async] PutObject failed")
				}
			}()
		}

		f.invalidate(container, remote)
		return nil

	case SYNC_REPLICATION:
		var errs []error
		for _, storage := range mains {
			if err := storage.PutObject(ctx, container, remote, bytes.NewReader(buf)); err != nil {
				errs = append(errs, fmt.Errorf("[sync] PutObject failed on %T: %w", storage, err))
			}
		}
		if len(errs) < len(mains) {
			f.invalidate(container, remote)
		}
		return aggregate("[sync] PutObject", errs, len(mains))

	default:
		return fmt.Errorf("unsupported replication mode: %v", f.replicationMode)
	}
}

// GetObject retrieves an object using the configured load balancing strategy.
func (f *FileClient) GetObject(ctx context.Context, container, remote string) (io.ReadCloser, error) {
	if err := validation.Validate(container, remote); err != nil {
		return nil, err
	}

	key := caching.Key(container, remote)
	if f.cache.Enabled() {
		if data := f.cache.GetFile(key); data != nil {
			return data, nil
		}
	}

	lb, err := f.loadBalancer()
	if err != nil {
		return nil, err
	}

	obj, err := lb.Apply(ctx, container, remote)
	if err != nil {
		return nil, fmt.Errorf("FileClient GetObject error: %w", err)
	}
	defer obj.Close()

	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	if f.cache.Enabled() {
		f.cache.Store(key, buf)
	}

	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (f *FileClient) loadBalancer() (loadbalancing.LoadBalancer, error) {
	f.lbMu.Lock()
	defer f.lbMu.Unlock()

	if f.lb != nil {
		return f.lb, nil
	}

	var strategy loadbalancing.Strategy
	switch f.lbStrategy {
	case READ_REPLICA_FIRST:
		strategy = loadbalancing.CLASSIC
	case ROUND_ROBIN:
		strategy = loadbalancing.ROUND_ROBIN
	default:
		return nil, fmt.Errorf("unsupported load balancing strategy: %v", f.lbStrategy)
	}

	var groups []loadbalancing.ClientGroup
	replicas, mains := f.byRole()
	if len(replicas) > 0 {
		groups = append(groups, loadbalancing.ClientGroup{Clients: toLB(replicas)})
	}
	if len(mains) > 0 {
		groups = append(groups, loadbalancing.ClientGroup{Clients: toLB(mains)})
	}

	lb, err := loadbalancing.Factory{}.NewLoadBalancer(strategy, groups)
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer: %w", err)
	}
	f.lb = lb
	return lb, nil
}

// byRole splits the storages into read replicas and main instances.
func (f *FileClient) byRole() (replicas, mains []filestorage.FileStorage) {
	for _, s := range f.storages {
		if s.GetConnectionProperties().IsMainInstance {
			mains = append(mains, s)
		} else {
			replicas = append(replicas, s)
		}
	}
	return replicas, mains
}

// RemoveObject deletes an object from all main storages in parallel.
// Errors are collected across storages and aggregated:
//   - If all storages fail, the function returns a consolidated error.
//   - If some storages fail, a partial error is returned with details.
//   - If no errors occur, the function returns nil.
func (f *FileClient) RemoveObject(ctx context.Context, container string, remote string) error {
	if err := validation.Validate(container, remote); err != nil {
		return err
	}

	mains := f.mains()
	if len(mains) == 0 {
		return errors.New("no main instance found for RemoveObject operation")
	}

	var (
		errs []error
		wg   sync.WaitGroup
		mu   sync.Mutex
	)
	for _, storage := range mains {
		wg.Add(1)
		go func(s filestorage.FileStorage) {
			defer wg.Done()
			if err := s.RemoveObject(ctx, container, remote); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("RemoveObject failed on storage %T: %w", s, err))
				mu.Unlock()
			}
		}(storage)
	}
	wg.Wait()

	f.invalidate(container, remote)
	return aggregate("RemoveObject", errs, len(mains))
}

func (f *FileClient) containerMains(op string) ([]filestorage.ContainerStorage, error) {
	var out []filestorage.ContainerStorage
	for _, s := range f.mains() {
		if cs, ok := s.(filestorage.ContainerStorage); ok {
			out = append(out, cs)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no main instance supporting containers found for %s operation", op)
	}
	return out, nil
}

// CreateContainer creates the container on every main storage that manages
// containers, one after another. The descriptor of the first storage that
// succeeded is returned.
func (f *FileClient) CreateContainer(ctx context.Context, name string) (common.Container, error) {
	if err := validation.ValidateContainerName(name); err != nil {
		return common.Container{}, err
	}

	mains, err := f.containerMains("CreateContainer")
	if err != nil {
		return common.Container{}, err
	}

	var (
		created common.Container
		ok      bool
		errs    []error
	)
	for _, s := range mains {
		c, err := s.CreateContainer(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("CreateContainer failed on %T: %w", s, err))
			continue
		}
		if !ok {
			created, ok = c, true
		}
	}
	return created, aggregate("CreateContainer", errs, len(mains))
}

// DestroyContainer removes the container and all its objects from every
// main storage that manages containers, and drops its cached objects.
func (f *FileClient) DestroyContainer(ctx context.Context, name string) error {
	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}

	mains, err := f.containerMains("DestroyContainer")
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range mains {
		if err := s.DestroyContainer(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("DestroyContainer failed on %T: %w", s, err))
		}
	}

	if f.cache.Enabled() {
		f.cache.InvalidatePrefix(caching.Key(name, ""))
	}
	return aggregate("DestroyContainer", errs, len(mains))
}

// ListObjects lists the container on the first storage that answers, read
// replicas first.
func (f *FileClient) ListObjects(ctx context.Context, container string) ([]common.File, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}

	replicas, mains := f.byRole()
	var errs []error
	for _, s := range append(replicas, mains...) {
		cs, ok := s.(filestorage.ContainerStorage)
		if !ok {
			continue
		}
		files, err := cs.ListObjects(ctx, container)
		if err == nil {
			return files, nil
		}
		errs = append(errs, fmt.Errorf("ListObjects failed on %T: %w", s, err))
	}

	if len(errs) == 0 {
		return nil, errors.New("no storage supporting containers found for ListObjects operation")
	}
	return nil, fmt.Errorf("ListObjects failed on all storages: %w", errors.Join(errs...))
}

func (f *FileClient) invalidate(container, remote string) {
	if f.cache.Enabled() {
		f.cache.Invalidate(caching.Key(container, remote))
	}
}

// aggregate reports errs collected from total storages.
func aggregate(op string, errs []error, total int) error {
	switch len(errs) {
	case 0:
		return nil
	case total:
		return fmt.Errorf("%s failed on all %d storages: %w", op, total, errors.Join(errs...))
	}
	return fmt.Errorf("%s partially failed on %d/%d storages: %w", op, len(errs), total, errors.Join(errs...))
}

// ConfigureCache replaces the cache with one built from options.
func (f *FileClient) ConfigureCache(options CacheOptions) error {
	if f == nil {
		return fmt.Errorf("file client is nil")
	}

	if options.MaxSizeMB <= 0 {
		options.MaxSizeMB = 1024
	}
	if options.TTL <= 0 {
		options.TTL = 10 * time.Minute
	}
	if options.MaxItems <= 0 {
		options.MaxItems = 5
	}

	if f.cache != nil {
		f.cache.StopValidationRoutine()
	}

	f.cache = &caching.FileCache{
		File: make(map[string]*caching.FileInformation),
		Options: caching.CacheOptions{
			Enabled:           options.Enabled,
			MaxSizeMB:         options.MaxSizeMB,
			TTL:               options.TTL,
			MaxItems:          options.MaxItems,
			ValidationOptions: options.ValidationStrategy,
		},
	}
	if f.cache.Enabled() {
		if err := f.cache.StartValidationRoutine(); err != nil {
			return fmt.Errorf("failed to start cache validation: %w", err)
		}
	}

	return nil
}

// EnableCache marks the cache as enabled and starts the validation routine
// if a validation strategy is configured.
func (f *FileClient) EnableCache() error {
	if f.cache == nil {
		return fmt.Errorf("cache is not configured; configure it before enabling")
	}
	if f.cache.Enabled() {
		return nil
	}

	f.cache.SetEnabled(true)
	return f.cache.StartValidationRoutine()
}

// DisableCache marks the cache as disabled and stops the validation routine.
// Safe to call multiple times.
func (f *FileClient) DisableCache() {
	if f.cache == nil {
		return
	}

	f.cache.StopValidationRoutine()
	f.cache.SetEnabled(false)
}

func (f *FileClient) ClearCache() {
	if f.cache != nil {
		f.cache.Clear()
	}
}

func toLB(storages []filestorage.FileStorage) []loadbalancing.Client {
	var clients []loadbalancing.Client
	for _, s := range storages {
		clients = append(clients, s)
	}
	return clients
}
