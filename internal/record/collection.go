package record

// Collection names a typed collection in the store.
type Collection string

const (
	Traps       Collection = "traps"
	Inspections Collection = "inspections"
	Alerts      Collection = "alerts"
	Messages    Collection = "messages"
	MediaItems  Collection = "media"
	Outbox      Collection = "outbox"
	SettingsKV  Collection = "settings"
)

// AllCollections lists the id-keyed collections in dependency order
// (parents before children). Settings is not included; it is a singleton.
var AllCollections = []Collection{Traps, Inspections, Alerts, Messages, MediaItems, Outbox}

// Index names a secondary lookup index over one JSON field of a collection.
type Index struct {
	Collection Collection
	Name       string
	Field      string
}

// Secondary indexes. Names follow the by_<field> convention of the field app.
var (
	TrapsByName         = Index{Traps, "by_name", "name"}
	InspectionsByTrapID = Index{Inspections, "by_trapId", "trapId"}
	InspectionsByDate   = Index{Inspections, "by_date", "date"}
	AlertsByActive      = Index{Alerts, "by_active", "active"}
	MessagesByDate      = Index{Messages, "by_date", "date"}
	MediaByInspectionID = Index{MediaItems, "by_inspectionId", "inspectionId"}
	MediaByTrapID       = Index{MediaItems, "by_trapId", "trapId"}
	OutboxByStatus      = Index{Outbox, "by_status", "status"}
	OutboxByCreatedAt   = Index{Outbox, "by_createdAt", "createdAt"}
)

// Indexes lists every secondary index known to the current schema.
var Indexes = []Index{
	TrapsByName,
	InspectionsByTrapID,
	InspectionsByDate,
	AlertsByActive,
	MessagesByDate,
	MediaByInspectionID,
	MediaByTrapID,
	OutboxByStatus,
	OutboxByCreatedAt,
}

// Record is implemented by every id-keyed entity.
// Implementations use value receivers so the zero value reports its collection.
type Record interface {
	RecordID() string
	Collection() Collection
}

func (t Trap) RecordID() string { return t.ID }

func (Trap) Collection() Collection { return Traps }

func (i Inspection) RecordID() string { return i.ID }

func (Inspection) Collection() Collection { return Inspections }

func (a AlertRule) RecordID() string { return a.ID }

func (AlertRule) Collection() Collection { return Alerts }

func (m Message) RecordID() string { return m.ID }

func (Message) Collection() Collection { return Messages }

func (m Media) RecordID() string { return m.ID }

func (Media) Collection() Collection { return MediaItems }

func (o OutboxItem) RecordID() string { return o.ID }

func (OutboxItem) Collection() Collection { return Outbox }
