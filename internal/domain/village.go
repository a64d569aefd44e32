package domain

// Village is one monitored village as returned by the status endpoint.
type Village struct {
	ID             string   `json:"id" validate:"required"`
	Name           string   `json:"name"`
	Taluka         string   `json:"taluka,omitempty"`
	District       string   `json:"district,omitempty"`
	Population     int      `json:"population" validate:"gte=0"`
	WSI            float64  `json:"wsi"`
	GWCurrentLevel float64  `json:"gw_current_level"`
	RainfallDevPct float64  `json:"rainfall_dev_pct"`
	PriorityScore  float64  `json:"priority_score"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
}

// Tier classifies the village's WSI.
func (v Village) Tier() Tier {
	return Classify(v.WSI)
}

// HasLocation reports whether both coordinates are present.
func (v Village) HasLocation() bool {
	return v.Lat != nil && v.Lng != nil
}

// DayForecast is one day of the five-day weather outlook for a village.
type DayForecast struct {
	Date        string  `json:"date"`
	TempMax     float64 `json:"temp_max"`
	TempMin     float64 `json:"temp_min"`
	RainfallMM  float64 `json:"rainfall_mm"`
	HumidityAvg float64 `json:"humidity_avg"`
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
