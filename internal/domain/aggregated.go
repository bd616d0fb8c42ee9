package domain

// BreakdownItem is one ranked slice of an aggregated view.
type BreakdownItem struct {
	Name         string  `json:"name"`
	TotalTime    float64 `json:"totalTime"`
	SessionCount int     `json:"sessionCount"`
	Percentage   float64 `json:"percentage"`
}

// DailyTotal is the tracked time of one date inside a period.
type DailyTotal struct {
	Date      string  `json:"date"`
	TotalTime float64 `json:"totalTime"`
	Sessions  int     `json:"sessions"`
}

// AggregatedStats is the merged view of the daily summaries of a period.
// Breakdowns are sorted by TotalTime descending. IsFallback is set when the
// data comes from SourceDate instead of the requested day.
type AggregatedStats struct {
	Period        Period          `json:"period"`
	Dates         []string        `json:"dates"`
	TotalTime     float64         `json:"totalTime"`
	TotalSessions int             `json:"totalSessions"`
	TotalFiles    int             `json:"totalFiles"`
	TotalFolders  int             `json:"totalFolders"`
	TotalTags     int             `json:"totalTags"`
	ActiveDays    int             `json:"activeDays"`
	MostUsedTag   string          `json:"mostUsedTag,omitempty"`
	LastActive    string          `json:"lastActiveFile,omitempty"`
	Categories    []BreakdownItem `json:"categories"`
	Files         []BreakdownItem `json:"files"`
	Folders       []BreakdownItem `json:"folders"`
	Tags          []BreakdownItem `json:"tags"`
	Daily         []DailyTotal    `json:"daily"`
	IsFallback    bool            `json:"isFallback"`
	SourceDate    string          `json:"sourceDate,omitempty"`
}
