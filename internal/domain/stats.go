package domain

import "math"

// DataVersion is the schema version written to persisted tracker data.
const DataVersion = "1.0.0"

// FileTrackingStats accumulates every session recorded for one file.
// TotalTime and AverageSessionTime are seconds; instants are epoch ms.
type FileTrackingStats struct {
	Path               string   `json:"path"`
	Name               string   `json:"name"`
	Folder             string   `json:"folder"`
	TotalTime          float64  `json:"totalTime"`
	SessionCount       int      `json:"sessionCount"`
	LastAccessed       int64    `json:"lastAccessed"`
	FirstAccessed      int64    `json:"firstAccessed"`
	AverageSessionTime float64  `json:"averageSessionTime"`
	Tags               []string `json:"tags"`
}

// FolderTrackingStats accumulates every session recorded for files in one
// folder.
type FolderTrackingStats struct {
	Path               string   `json:"path"`
	Name               string   `json:"name"`
	TotalTime          float64  `json:"totalTime"`
	SessionCount       int      `json:"sessionCount"`
	LastAccessed       int64    `json:"lastAccessed"`
	FirstAccessed      int64    `json:"firstAccessed"`
	AverageSessionTime float64  `json:"averageSessionTime"`
	Files              []string `json:"files"`
	FileCount          int      `json:"fileCount"`
}

// TagTrackingStats accumulates every session recorded under one tag.
type TagTrackingStats struct {
	Name               string   `json:"name"`
	TotalTime          float64  `json:"totalTime"`
	SessionCount       int      `json:"sessionCount"`
	LastAccessed       int64    `json:"lastAccessed"`
	FirstAccessed      int64    `json:"firstAccessed"`
	AverageSessionTime float64  `json:"averageSessionTime"`
	Files              []string `json:"files"`
	Folders            []string `json:"folders"`
	FileCount          int      `json:"fileCount"`
	FolderCount        int      `json:"folderCount"`
}

// TimeShare is one named slice of a day's tracked time.
type TimeShare struct {
	Name         string  `json:"name"`
	TotalTime    float64 `json:"totalTime"`
	SessionCount int     `json:"sessionCount"`
}

// DailySummary rolls up one calendar date (YYYY-MM-DD, local time).
// TotalFiles, TotalFolders and TotalTags are recomputed from the keyed stats
// on every recorded entry. The share lists keep first-seen order.
type DailySummary struct {
	Date             string      `json:"date"`
	TotalFiles       int         `json:"totalFiles"`
	TotalFolders     int         `json:"totalFolders"`
	TotalTags        int         `json:"totalTags"`
	TotalTimeSpent   float64     `json:"totalTimeSpent"`
	TotalSessions    int         `json:"totalSessions"`
	LastActiveFile   string      `json:"lastActiveFile"`
	LastActiveFolder string      `json:"lastActiveFolder"`
	MostUsedTag      string      `json:"mostUsedTag"`
	LastUpdated      int64       `json:"lastUpdated"`
	Categories       []TimeShare `json:"categories"`
	Files            []TimeShare `json:"files"`
	Folders          []TimeShare `json:"folders"`
	Tags             []TimeShare `json:"tags"`
}

// AddShare adds seconds and one session to the named share, appending it on
// first sight.
func AddShare(shares []TimeShare, name string, seconds float64) []TimeShare {
	for i := range shares {
		if shares[i].Name == name {
			shares[i].TotalTime = RoundTenth(shares[i].TotalTime + seconds)
			shares[i].SessionCount++
			return shares
		}
	}
	return append(shares, TimeShare{Name: name, TotalTime: seconds, SessionCount: 1})
}

// TrackerData is the persisted aggregate document.
type TrackerData struct {
	Version     string                          `json:"version"`
	LastUpdated int64                           `json:"lastUpdated"`
	Files       map[string]*FileTrackingStats   `json:"files"`
	Folders     map[string]*FolderTrackingStats `json:"folders"`
	Tags        map[string]*TagTrackingStats    `json:"tags"`
	Timeline    *Timeline                       `json:"timeline"`
	Summary     map[string]*DailySummary        `json:"summary"`
}

// NewTrackerData returns the empty document.
func NewTrackerData() *TrackerData {
	return &TrackerData{
		Version:  DataVersion,
		Files:    make(map[string]*FileTrackingStats),
		Folders:  make(map[string]*FolderTrackingStats),
		Tags:     make(map[string]*TagTrackingStats),
		Timeline: NewTimeline(DefaultTimelineLimit),
		Summary:  make(map[string]*DailySummary),
	}
}

// Normalize fills nil maps and the timeline of a decoded document and drops
// null map values.
func (d *TrackerData) Normalize() {
	if d.Version == "" {
		d.Version = DataVersion
	}
	if d.Files == nil {
		d.Files = make(map[string]*FileTrackingStats)
	}
	if d.Folders == nil {
		d.Folders = make(map[string]*FolderTrackingStats)
	}
	if d.Tags == nil {
		d.Tags = make(map[string]*TagTrackingStats)
	}
	if d.Timeline == nil {
		d.Timeline = NewTimeline(DefaultTimelineLimit)
	}
	if d.Summary == nil {
		d.Summary = make(map[string]*DailySummary)
	}
	dropNil(d.Files)
	dropNil(d.Folders)
	dropNil(d.Tags)
	dropNil(d.Summary)
}

func dropNil[V any](m map[string]*V) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
}

// Clone returns a deep copy. Null map values are not copied.
func (d *TrackerData) Clone() *TrackerData {
	c := &TrackerData{
		Version:     d.Version,
		LastUpdated: d.LastUpdated,
		Files:       make(map[string]*FileTrackingStats, len(d.Files)),
		Folders:     make(map[string]*FolderTrackingStats, len(d.Folders)),
		Tags:        make(map[string]*TagTrackingStats, len(d.Tags)),
		Summary:     make(map[string]*DailySummary, len(d.Summary)),
	}
	for k, v := range d.Files {
		if v == nil {
			continue
		}
		fs := *v
		fs.Tags = append([]string(nil), v.Tags...)
		c.Files[k] = &fs
	}
	for k, v := range d.Folders {
		if v == nil {
			continue
		}
		fs := *v
		fs.Files = append([]string(nil), v.Files...)
		c.Folders[k] = &fs
	}
	for k, v := range d.Tags {
		if v == nil {
			continue
		}
		ts := *v
		ts.Files = append([]string(nil), v.Files...)
		ts.Folders = append([]string(nil), v.Folders...)
		c.Tags[k] = &ts
	}
	for k, v := range d.Summary {
		if v == nil {
			continue
		}
		c.Summary[k] = v.Clone()
	}
	if d.Timeline != nil {
		c.Timeline = d.Timeline.Clone()
	} else {
		c.Timeline = NewTimeline(DefaultTimelineLimit)
	}
	return c
}

// Clone returns a deep copy.
func (s *DailySummary) Clone() *DailySummary {
	c := *s
	c.Categories = append([]TimeShare(nil), s.Categories...)
	c.Files = append([]TimeShare(nil), s.Files...)
	c.Folders = append([]TimeShare(nil), s.Folders...)
	c.Tags = append([]TimeShare(nil), s.Tags...)
	return &c
}

// RoundTenth rounds seconds to one decimal place, undoing float drift from
// repeated additions.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
