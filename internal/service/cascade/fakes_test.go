package cascade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stratus/internal/domain/models"
	"stratus/internal/domain/repositories"
)

// fakeClock hands out strictly increasing instants so writes stamped during a
// loop iteration always precede the window bound read afterwards, matching a
// real database clock.
type fakeClock struct {
	t time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

// fakeTreeStore is an in-memory FolderRepository + FileRepository with the
// same predicate and guard semantics as the SQL layer.
type fakeTreeStore struct {
	clock   *fakeClock
	folders map[string]*models.Folder
	files   map[string]*models.File

	folderWrites int
	fileWrites   int

	findErr   error
	removeErr error
	statsErr  error
}

func newFakeTreeStore(clock *fakeClock) *fakeTreeStore {
	return &fakeTreeStore{
		clock:   clock,
		folders: make(map[string]*models.Folder),
		files:   make(map[string]*models.File),
	}
}

func (s *fakeTreeStore) addFolder(uuid string, parentUUID *string, userID int64, removed bool, updatedAt time.Time) *models.Folder {
	f := &models.Folder{
		ID:         int64(len(s.folders) + 1),
		UUID:       uuid,
		ParentUUID: parentUUID,
		UserID:     userID,
		PlainName:  uuid,
		Bucket:     "bucket",
		Removed:    removed,
		Deleted:    removed,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
	if removed {
		at := updatedAt
		f.RemovedAt = &at
		f.DeletedAt = &at
	}
	s.folders[uuid] = f
	return f
}

func (s *fakeTreeStore) addFile(uuid, folderUUID string, userID int64, status models.FileStatus, size int64, createdAt time.Time) *models.File {
	fi := &models.File{
		UUID:       uuid,
		FolderUUID: folderUUID,
		UserID:     userID,
		Status:     status,
		Size:       size,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	s.files[uuid] = fi
	return fi
}

func (s *fakeTreeStore) hasActiveChildFolder(f *models.Folder) bool {
	for _, c := range s.folders {
		if c.ParentUUID != nil && *c.ParentUUID == f.UUID && c.UserID == f.UserID && !c.Removed {
			return true
		}
	}
	return false
}

func (s *fakeTreeStore) hasActiveFile(f *models.Folder) bool {
	for _, fi := range s.files {
		if fi.FolderUUID == f.UUID && fi.UserID == f.UserID && fi.Status != models.FileStatusDeleted {
			return true
		}
	}
	return false
}

func (s *fakeTreeStore) FindRemovedWithActiveChildFolders(_ context.Context, window models.TimeWindow, limit int) ([]string, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []string
	for _, f := range s.folders {
		if !f.Removed || f.UpdatedAt.Before(window.Start) || !f.UpdatedAt.Before(window.Until) {
			continue
		}
		if s.hasActiveChildFolder(f) {
			out = append(out, f.UUID)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTreeStore) FindRemovedWithActiveChildFoldersForUser(_ context.Context, userID int64, until time.Time, limit int) ([]string, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []string
	for _, f := range s.folders {
		if f.UserID != userID || !f.Removed || f.UpdatedAt.After(until) {
			continue
		}
		if s.hasActiveChildFolder(f) {
			out = append(out, f.UUID)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTreeStore) RemoveChildFolders(_ context.Context, parentUUIDs []string) (int64, error) {
	if s.removeErr != nil {
		return 0, s.removeErr
	}
	var n int64
	for _, parentUUID := range parentUUIDs {
		parent := s.folders[parentUUID]
		if parent == nil {
			continue
		}
		for _, c := range s.folders {
			if c.ParentUUID == nil || *c.ParentUUID != parentUUID {
				continue
			}
			if c.UserID != parent.UserID || c.Removed {
				continue
			}
			now := s.clock.Now()
			c.Removed = true
			c.RemovedAt = &now
			c.Deleted = true
			c.DeletedAt = &now
			c.UpdatedAt = now
			n++
		}
	}
	s.folderWrites += int(n)
	return n, nil
}

func (s *fakeTreeStore) FindRemovedWithActiveFiles(_ context.Context, window models.TimeWindow, limit int) ([]string, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []string
	for _, f := range s.folders {
		if !f.Removed || f.UpdatedAt.Before(window.Start) || !f.UpdatedAt.Before(window.Until) {
			continue
		}
		if s.hasActiveFile(f) {
			out = append(out, f.UUID)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTreeStore) FindRemovedWithActiveFilesForUser(_ context.Context, userID int64, until time.Time, limit int) ([]string, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []string
	for _, f := range s.folders {
		if f.UserID != userID || !f.Removed || f.UpdatedAt.After(until) {
			continue
		}
		if s.hasActiveFile(f) {
			out = append(out, f.UUID)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTreeStore) LatestRemovedForUser(_ context.Context, userID int64) (*models.Folder, error) {
	var best *models.Folder
	for _, f := range s.folders {
		if f.UserID != userID || !f.Removed {
			continue
		}
		if best == nil {
			best = f
			continue
		}
		// removed_at DESC NULLS LAST
		switch {
		case f.RemovedAt == nil:
		case best.RemovedAt == nil:
			best = f
		case f.RemovedAt.After(*best.RemovedAt):
			best = f
		}
	}
	return best, nil
}

func (s *fakeTreeStore) FindRemovableDuplicates(_ context.Context, window models.TimeWindow, limit int) ([]string, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}

	groups := make(map[string][]*models.Folder)
	for _, f := range s.folders {
		if f.ParentUUID != nil || f.Removed || f.Deleted {
			continue
		}
		if f.CreatedAt.Before(window.Start) || !f.CreatedAt.Before(window.Until) {
			continue
		}
		key := fmt.Sprintf("%s|%s|%d", f.PlainName, f.Bucket, f.UserID)
		groups[key] = append(groups[key], f)
	}

	var keys []string
	for key, members := range groups {
		if len(members) > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	var out []string
	for _, key := range keys {
		members := groups[key]
		keep := members[0]
		for _, f := range members[1:] {
			if f.ID < keep.ID {
				keep = f
			}
		}
		for _, f := range members {
			if f.ID == keep.ID {
				continue
			}
			if s.hasActiveFile(f) || s.hasActiveChildFolder(f) {
				continue
			}
			out = append(out, f.UUID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeTreeStore) SoftRemoveFolders(_ context.Context, uuids []string) (int64, error) {
	if s.removeErr != nil {
		return 0, s.removeErr
	}
	var n int64
	for _, u := range uuids {
		f := s.folders[u]
		if f == nil || f.Deleted || f.Removed {
			continue
		}
		now := s.clock.Now()
		f.Deleted = true
		f.DeletedAt = &now
		f.Removed = true
		f.RemovedAt = &now
		f.UpdatedAt = now
		n++
	}
	s.folderWrites += int(n)
	return n, nil
}

// subtreeUUIDs walks the live (non-removed) subtree the way the recursive
// query does: owner match on every hop, removed branches pruned.
func (s *fakeTreeStore) subtreeUUIDs(folderUUID string, userID int64) []string {
	root := s.folders[folderUUID]
	if root == nil || root.UserID != userID {
		return nil
	}
	frontier := []string{folderUUID}
	seen := map[string]bool{folderUUID: true}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, c := range s.folders {
			if c.ParentUUID == nil || *c.ParentUUID != next {
				continue
			}
			if c.UserID != userID || c.Removed || seen[c.UUID] {
				continue
			}
			seen[c.UUID] = true
			frontier = append(frontier, c.UUID)
		}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	return out
}

func (s *fakeTreeStore) SumSubtreeFileSizes(_ context.Context, folderUUID string, userID int64, includeTrash bool) (int64, error) {
	if s.statsErr != nil {
		return 0, s.statsErr
	}
	var total int64
	for _, u := range s.subtreeUUIDs(folderUUID, userID) {
		for _, fi := range s.files {
			if fi.FolderUUID != u || fi.UserID != userID {
				continue
			}
			if fi.Status == models.FileStatusExists || (includeTrash && fi.Status == models.FileStatusTrashed) {
				total += fi.Size
			}
		}
	}
	return total, nil
}

func (s *fakeTreeStore) SubtreeFileStats(_ context.Context, folderUUID string, userID int64, sizeBudget int) (int, int64, error) {
	if s.statsErr != nil {
		return 0, 0, s.statsErr
	}
	inSubtree := make(map[string]bool)
	for _, u := range s.subtreeUUIDs(folderUUID, userID) {
		inSubtree[u] = true
	}

	var ranked []*models.File
	for _, fi := range s.files {
		if inSubtree[fi.FolderUUID] && fi.UserID == userID && fi.Status == models.FileStatusExists {
			ranked = append(ranked, fi)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].CreatedAt.Before(ranked[j].CreatedAt) })
	if len(ranked) > sizeBudget {
		ranked = ranked[:sizeBudget]
	}

	var size int64
	for _, fi := range ranked {
		size += fi.Size
	}
	return len(ranked), size, nil
}

func (s *fakeTreeStore) RemoveFilesInFolders(_ context.Context, folderUUIDs []string) (int64, error) {
	if s.removeErr != nil {
		return 0, s.removeErr
	}
	var n int64
	for _, folderUUID := range folderUUIDs {
		folder := s.folders[folderUUID]
		if folder == nil {
			continue
		}
		for _, fi := range s.files {
			if fi.FolderUUID != folderUUID || fi.UserID != folder.UserID {
				continue
			}
			if fi.Status == models.FileStatusDeleted {
				continue
			}
			fi.Status = models.FileStatusDeleted
			fi.UpdatedAt = s.clock.Now()
			n++
		}
	}
	s.fileWrites += int(n)
	return n, nil
}

// fakeJobLog is an in-memory JobExecutionRepository.
type fakeJobLog struct {
	executions []*models.JobExecution
	startErr   error
}

func (l *fakeJobLog) Start(_ context.Context, jobName string, startedAt time.Time, metadata map[string]any) (*models.JobExecution, error) {
	if l.startErr != nil {
		return nil, l.startErr
	}
	execution := &models.JobExecution{
		ID:        fmt.Sprintf("run-%d", len(l.executions)+1),
		JobName:   jobName,
		Status:    models.JobStatusRunning,
		StartedAt: startedAt,
		Metadata:  metadata,
	}
	l.executions = append(l.executions, execution)
	return execution, nil
}

func (l *fakeJobLog) Complete(_ context.Context, id string, at time.Time) error {
	for _, e := range l.executions {
		if e.ID == id && e.Status == models.JobStatusRunning {
			e.Status = models.JobStatusCompleted
			e.CompletedAt = &at
		}
	}
	return nil
}

func (l *fakeJobLog) Fail(_ context.Context, id string, at time.Time, errorMessage string) error {
	for _, e := range l.executions {
		if e.ID == id && e.Status == models.JobStatusRunning {
			e.Status = models.JobStatusFailed
			e.FailedAt = &at
			e.ErrorMessage = &errorMessage
		}
	}
	return nil
}

func (l *fakeJobLog) LastCompleted(_ context.Context, jobName string) (*models.JobExecution, error) {
	var best *models.JobExecution
	for _, e := range l.executions {
		if e.JobName != jobName || e.Status != models.JobStatusCompleted {
			continue
		}
		if best == nil || e.StartedAt.After(best.StartedAt) {
			best = e
		}
	}
	return best, nil
}

// fakeTxManager runs the callback directly; the fake store has no snapshots.
type fakeTxManager struct{}

func (fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

// fakeUserDirectory is an in-memory UserRepository.
type fakeUserDirectory struct {
	ids []int64
}

func (d *fakeUserDirectory) PageUserIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	sorted := append([]int64(nil), d.ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var out []int64
	for _, id := range sorted {
		if id > afterID {
			out = append(out, id)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
