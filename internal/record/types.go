package record

// TrapStatus is the operational state of a trap.
type TrapStatus string

const (
	StatusActive         TrapStatus = "Active"
	StatusMaintenance    TrapStatus = "Maintenance"
	StatusDecommissioned TrapStatus = "Decommissioned"
)

// Trap is a physical monitoring device at a fixed location.
type Trap struct {
	ID          string     `json:"id" validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Code        string     `json:"code"`
	Lat         float64    `json:"lat" validate:"min=-90,max=90"`
	Lng         float64    `json:"lng" validate:"min=-180,max=180"`
	Type        string     `json:"type"`
	Bait        string     `json:"bait"`
	InstallDate string     `json:"installDate" validate:"omitempty,datetime=2006-01-02"`
	Status      TrapStatus `json:"status" validate:"oneof=Active Maintenance Decommissioned"`
	Tags        []string   `json:"tags"`
	Notes       string     `json:"notes"`
}

// Source records how an inspection entered the system.
type Source string

const (
	SourceManual Source = "manual"
	SourceImage  Source = "image"
	SourceSensor Source = "sensor"
	SourceImport Source = "import"
)

// Inspection is one field observation of a trap on a given day.
// MediaIDs is the only link to attached media.
type Inspection struct {
	ID            string   `json:"id" validate:"required"`
	TrapID        string   `json:"trapId" validate:"required"`
	Date          string   `json:"date" validate:"required,datetime=2006-01-02"`
	Adults        int      `json:"adults" validate:"gte=0"`
	Females       int      `json:"females" validate:"gte=0"`
	Larvae        int      `json:"larvae" validate:"gte=0"`
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity"`
	Wind          *float64 `json:"wind"`
	Notes         string   `json:"notes"`
	Operator      string   `json:"operator"`
	Source        Source   `json:"source" validate:"oneof=manual image sensor import"`
	SourceRef     string   `json:"sourceRef"`
	SourceNote    string   `json:"sourceNote"`
	SourcePayload string   `json:"sourcePayload"`
	MediaIDs      []string `json:"mediaIds"`
}

// Metric selects what an alert rule compares against its threshold.
type Metric string

const (
	MetricAdults Metric = "adults"
	MetricLarvae Metric = "larvae"
	MetricNearby Metric = "nearby"
)

// AlertRule is a threshold condition over a metric.
// Threshold is a count for adults/larvae and a distance ceiling in meters for nearby.
type AlertRule struct {
	ID        string  `json:"id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Metric    Metric  `json:"metric" validate:"required"`
	Threshold float64 `json:"threshold"`
	Active    bool    `json:"active"`
	Scope     string  `json:"scope"`
	Note      string  `json:"note"`
}

// Label returns the note when present, otherwise the name.
func (a AlertRule) Label() string {
	if a.Note != "" {
		return a.Note
	}
	return a.Name
}

// Message is an entry in the append-only communication log.
type Message struct {
	ID      string   `json:"id" validate:"required"`
	Date    string   `json:"date" validate:"required"`
	Channel string   `json:"channel"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags"`
}

// MediaKindImage is the only media kind currently produced.
const MediaKindImage = "image"

// Media is an attachment owned by an inspection.
// TrapID is denormalized and always equals the owning inspection's TrapID.
type Media struct {
	ID           string `json:"id" validate:"required"`
	InspectionID string `json:"inspectionId" validate:"required"`
	TrapID       string `json:"trapId" validate:"required"`
	Kind         string `json:"kind"`
	DataURL      string `json:"dataUrl"`
	CreatedAt    string `json:"createdAt"`
	Filename     string `json:"filename,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	Note         string `json:"note,omitempty"`
}

// OutboxStatus is the dispatch state of an outbox item.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
)

// ChannelWhatsApp is the channel of every outbox item.
const ChannelWhatsApp = "whatsapp"

// Context types carried by outbox items.
const (
	ContextAlert  = "alert"
	ContextNearby = "nearby"
	ContextManual = "manual"
)

// OutboxContext points back at the facts that produced a notification.
type OutboxContext struct {
	Type         string   `json:"type"`
	InspectionID string   `json:"inspectionId,omitempty"`
	TrapID       string   `json:"trapId,omitempty"`
	RuleIDs      []string `json:"alertIds,omitempty"`
	Distance     *int     `json:"distance,omitempty"`
}

// OutboxItem is a durable notification awaiting manual dispatch.
type OutboxItem struct {
	ID          string         `json:"id" validate:"required"`
	Channel     string         `json:"channel"`
	Status      OutboxStatus   `json:"status" validate:"oneof=pending sent"`
	CreatedAt   string         `json:"createdAt" validate:"required"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Context     *OutboxContext `json:"context"`
	SentAt      string         `json:"sentAt,omitempty"`
	TargetPhone string         `json:"targetPhone,omitempty"`
}

// Position is a point on the earth in decimal degrees.
type Position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
}
