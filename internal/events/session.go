package events

// Entity types
const (
	EntitySession = "session"
	EntityItem    = "item"
	EntityGallery = "gallery"
	EntityFile    = "file"
	EntityNetwork = "network"
)

// Event type constants
const (
	EventSessionStarted   = "session.started"
	EventSessionEnded     = "session.ended"
	EventItemStatus       = "item.status"
	EventGalleryFiltered  = "gallery.filtered"
	EventGallerySkipped   = "gallery.skipped"
	EventGalleryCompleted = "gallery.completed"
	EventFileCompleted    = "file.completed"
	EventDisconnected     = "network.disconnected"
	EventReconnected      = "network.reconnected"
)

// SessionStarted is emitted when a controller leaves Initializing.
type SessionStarted struct {
	BaseEvent
	SessionID    string   `json:"session_id"`
	DownloadType string   `json:"download_type"`
	Items        []string `json:"items"`
}

// SessionEnded is emitted with the final summary.
type SessionEnded struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Cancelled bool   `json:"cancelled"`
	Report    string `json:"report"`
}

// ItemStatusChanged is emitted on every item status change. EntityID is
// the item's position in the request.
type ItemStatusChanged struct {
	BaseEvent
	Item   string `json:"item"`
	Status string `json:"status"`
}

// GalleryFiltered is emitted when a gallery is rejected by the filter.
type GalleryFiltered struct {
	BaseEvent
	Reason string `json:"reason"`
}

// GallerySkipped is emitted for galleries that are already present or
// could not be processed.
type GallerySkipped struct {
	BaseEvent
	Reason string `json:"reason"`
}

// GalleryCompleted is emitted once a gallery's files and metadata are saved.
type GalleryCompleted struct {
	BaseEvent
	Title    string `json:"title"`
	Location string `json:"location"`
	Files    int    `json:"files"`
}

// FileCompleted is emitted for every file written or found on disk.
// EntityID is the owning gallery.
type FileCompleted struct {
	BaseEvent
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Existing bool   `json:"existing"`
}

// NetworkStateChanged is emitted when a service loses or regains the network.
type NetworkStateChanged struct {
	BaseEvent
}
