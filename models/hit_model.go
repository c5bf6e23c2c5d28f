package models

// ScreenPoint is a position on the map view in pixels, origin top-left.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MaxIdentifyRadius is the largest identify radius, in meters, the record service accepts.
const MaxIdentifyRadius = 5000

type HitSource int

const (
	SourceNone HitSource = iota
	SourceOverlay
	SourceRemoteFeatureLayer
)

func (s HitSource) String() string {
	switch s {
	case SourceOverlay:
		return "overlay"
	case SourceRemoteFeatureLayer:
		return "remote_feature_layer"
	default:
		return "none"
	}
}

// HitTestResult is the outcome of resolving a tap. Record is nil when Source is SourceNone.
type HitTestResult struct {
	Source HitSource
	Record *Record
}

func (h HitTestResult) Found() bool {
	return h.Source != SourceNone && h.Record != nil
}

type Existence int

const (
	ExistenceUnknown Existence = iota
	ExistenceChecking
	ExistenceConfirmed
	ExistenceMissing
)

func (e Existence) String() string {
	switch e {
	case ExistenceChecking:
		return "checking"
	case ExistenceConfirmed:
		return "confirmed"
	case ExistenceMissing:
		return "missing"
	default:
		return "unknown"
	}
}

type ReviewsStatus int

const (
	ReviewsNotLoaded ReviewsStatus = iota
	ReviewsLoading
	ReviewsLoaded
	ReviewsFailed
)

func (s ReviewsStatus) String() string {
	switch s {
	case ReviewsLoading:
		return "loading"
	case ReviewsLoaded:
		return "loaded"
	case ReviewsFailed:
		return "failed"
	default:
		return "not_loaded"
	}
}

// SyncState tracks one record's synchronization while it is open.
type SyncState struct {
	Existence Existence
	Reviews   ReviewsStatus
	Loaded    []Review
}
