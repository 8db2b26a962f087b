// Package location は位置情報と権限フラグを3状態のステータスに統合する。
package location

import (
	"context"
	"sync"

	"github.com/hitoshi/lunchmate/internal/model"
)

// State は位置情報ステータスの種別を表す。
type State string

const (
	StateDenied    State = "denied"
	StateQuerying  State = "querying"
	StateAvailable State = "available"
)

// Status は統合された位置情報ステータス。LocationはStateAvailableの場合のみ設定される。
type Status struct {
	State    State         `json:"state"`
	Location *model.LatLng `json:"location,omitempty"`
}

// PermissionChecker は位置情報権限を同期的に返す。knownがfalseの場合は未確定。
type PermissionChecker interface {
	Permission() (granted, known bool)
}

// LocationRequester は継続的な位置情報取得を開始・停止する。
type LocationRequester interface {
	StartLocationRequest()
	StopLocationRequest()
}

// Fuse は最後に受信した位置と権限フラグからステータスを決定する。
// 一度でも位置を受信していれば、現在の権限に関わらずその座標でavailableとなる。
func Fuse(last *model.LatLng, permission *bool) Status {
	if last != nil {
		loc := *last
		return Status{State: StateAvailable, Location: &loc}
	}
	if permission != nil && *permission {
		return Status{State: StateQuerying}
	}
	return Status{State: StateDenied}
}

// Fuser は位置ストリームと権限フラグを統合し、変化のたびにステータスを再計算する。
// 購読者には最新値のみが届く。
type Fuser struct {
	checker   PermissionChecker
	requester LocationRequester

	mu         sync.Mutex
	permission *bool
	last       *model.LatLng
	status     Status
	subs       map[chan Status]struct{}
}

// NewFuser はFuserを生成する。初期状態はdenied。
func NewFuser(checker PermissionChecker, requester LocationRequester) *Fuser {
	return &Fuser{
		checker:   checker,
		requester: requester,
		status:    Fuse(nil, nil),
		subs:      make(map[chan Status]struct{}),
	}
}

// Refresh は権限を読み直し、許可されていれば位置取得を(再)開始、そうでなければ停止する。
func (f *Fuser) Refresh() {
	granted, known := f.checker.Permission()

	f.mu.Lock()
	if known {
		f.permission = &granted
	} else {
		f.permission = nil
	}
	f.recomputeLocked()
	f.mu.Unlock()

	if known && granted {
		f.requester.StartLocationRequest()
		return
	}
	f.requester.StopLocationRequest()
}

// Deliver は位置を1件受信する。
func (f *Fuser) Deliver(loc model.LatLng) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = &loc
	f.recomputeLocked()
}

// Consume はctxが終了するかチャネルが閉じられるまで位置を受信し続ける。
func (f *Fuser) Consume(ctx context.Context, locations <-chan model.LatLng) {
	for {
		select {
		case <-ctx.Done():
			return
		case loc, ok := <-locations:
			if !ok {
				return
			}
			f.Deliver(loc)
		}
	}
}

// Status は現在のステータスを返す。
func (f *Fuser) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Subscribe はステータスの購読チャネルと解除関数を返す。
// チャネルには購読時点の値が最初に届き、その後は変化のたびに最新値のみが届く。
func (f *Fuser) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	ch <- f.status
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (f *Fuser) recomputeLocked() {
	next := Fuse(f.last, f.permission)
	if sameStatus(next, f.status) {
		return
	}
	f.status = next

	for ch := range f.subs {
		// 未読の古い値は捨てて最新値に置き換える
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

func sameStatus(a, b Status) bool {
	if a.State != b.State {
		return false
	}
	if a.Location == nil || b.Location == nil {
		return a.Location == b.Location
	}
	return *a.Location == *b.Location
}
