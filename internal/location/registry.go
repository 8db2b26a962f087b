package location

import (
	"sync"

	"github.com/hitoshi/lunchmate/internal/model"
)

// Registry は同僚ごとのFuserを保持する。
// クライアントからの報告を権限ソースと位置ストリームとしてFuserに渡す。
type Registry struct {
	mu      sync.Mutex
	entries map[string]*reportedSource
}

// NewRegistry はRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*reportedSource)}
}

// Report は権限と座標の報告を反映し、更新後のステータスを返す。
// 座標は位置取得が開始されている場合のみ受け付ける。
func (r *Registry) Report(externalID string, permission bool, loc *model.LatLng) Status {
	src := r.entry(externalID)

	src.setPermission(permission)
	src.fuser.Refresh()

	if loc != nil && src.isTracking() {
		src.fuser.Deliver(*loc)
	}
	return src.fuser.Status()
}

// Status は同僚の現在のステータスを返す。報告がない場合はdenied。
func (r *Registry) Status(externalID string) Status {
	r.mu.Lock()
	src, ok := r.entries[externalID]
	r.mu.Unlock()

	if !ok {
		return Fuse(nil, nil)
	}
	return src.fuser.Status()
}

// Subscribe は同僚のステータス購読チャネルと解除関数を返す。
func (r *Registry) Subscribe(externalID string) (<-chan Status, func()) {
	return r.entry(externalID).fuser.Subscribe()
}

func (r *Registry) entry(externalID string) *reportedSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.entries[externalID]
	if !ok {
		src = &reportedSource{}
		src.fuser = NewFuser(src, src)
		r.entries[externalID] = src
	}
	return src
}

// reportedSource はクライアント報告を権限ソースと位置取得の両方として扱う。
type reportedSource struct {
	fuser *Fuser

	mu       sync.Mutex
	granted  bool
	known    bool
	tracking bool
}

var (
	_ PermissionChecker = (*reportedSource)(nil)
	_ LocationRequester = (*reportedSource)(nil)
)

func (s *reportedSource) setPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = granted
	s.known = true
}

func (s *reportedSource) Permission() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted, s.known
}

func (s *reportedSource) StartLocationRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = true
}

func (s *reportedSource) StopLocationRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = false
}

func (s *reportedSource) isTracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracking
}
