package domain

// Note is a free-form markdown note.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title" validate:"max=500"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	Pinned    bool     `json:"pinned,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// Task is a to-do item.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title" validate:"notblank,max=500"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty" validate:"omitempty,oneof=P1 P2 P3 P4"`
	DueDate     string   `json:"dueDate,omitempty" validate:"isodate"`
	Tags        []string `json:"tags,omitempty"`
	Completed   bool     `json:"completed"`
	CompletedAt string   `json:"completedAt,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// Habit is a recurring activity tracked by completion dates.
type Habit struct {
	ID             string   `json:"id"`
	Name           string   `json:"name" validate:"notblank,max=200"`
	Frequency      string   `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly"`
	Category       string   `json:"category,omitempty"`
	CompletedDates []string `json:"completedDates,omitempty" validate:"dive,isodate"`
	Streak         int      `json:"streak"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

// JournalEntry is the journal text for one calendar day. Dates are unique.
type JournalEntry struct {
	ID        string   `json:"id"`
	Date      string   `json:"date" validate:"notblank,isodate"`
	Content   string   `json:"content"`
	Mood      int      `json:"mood,omitempty" validate:"gte=0,lte=5"`
	Energy    int      `json:"energy,omitempty" validate:"gte=0,lte=5"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// Bookmark is a saved link.
type Bookmark struct {
	ID          string   `json:"id"`
	URL         string   `json:"url" validate:"notblank,url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Collection  string   `json:"collection,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsRead      bool     `json:"isRead"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// Idea is a short captured idea.
type Idea struct {
	ID        string   `json:"id"`
	Title     string   `json:"title" validate:"notblank,max=500"`
	Content   string   `json:"content,omitempty"`
	Color     string   `json:"color,omitempty" validate:"hexcolor"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// DailyNoteCard is a card pinned to a day on the daily notes board.
type DailyNoteCard struct {
	ID        string `json:"id"`
	Date      string `json:"date" validate:"notblank,isodate"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Pinned    bool   `json:"pinned,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// FocusSession is one completed or abandoned focus timer run.
type FocusSession struct {
	ID              string `json:"id"`
	TaskID          string `json:"taskId,omitempty"`
	Label           string `json:"label,omitempty"`
	StartedAt       string `json:"startedAt,omitempty"`
	DurationMinutes int    `json:"durationMinutes" validate:"gte=1,lte=1440"`
	Completed       bool   `json:"completed"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

// GamificationStats is the singleton holding the user's progress.
type GamificationStats struct {
	Level         int      `json:"level"`
	XP            int      `json:"xp"`
	CurrentStreak int      `json:"currentStreak"`
	LongestStreak int      `json:"longestStreak"`
	Achievements  []string `json:"achievements,omitempty"`
}

// FocusStats is the singleton aggregating focus sessions.
type FocusStats struct {
	TotalSessions   int    `json:"totalSessions"`
	TotalMinutes    int    `json:"totalMinutes"`
	TodayMinutes    int    `json:"todayMinutes"`
	LastSessionDate string `json:"lastSessionDate,omitempty"`
}

func (n *Note) stamp(id, created, updated string)          { n.ID, n.CreatedAt, n.UpdatedAt = id, created, updated }
func (t *Task) stamp(id, created, updated string)          { t.ID, t.CreatedAt, t.UpdatedAt = id, created, updated }
func (h *Habit) stamp(id, created, updated string)         { h.ID, h.CreatedAt, h.UpdatedAt = id, created, updated }
func (j *JournalEntry) stamp(id, created, updated string)  { j.ID, j.CreatedAt, j.UpdatedAt = id, created, updated }
func (b *Bookmark) stamp(id, created, updated string)      { b.ID, b.CreatedAt, b.UpdatedAt = id, created, updated }
func (i *Idea) stamp(id, created, updated string)          { i.ID, i.CreatedAt, i.UpdatedAt = id, created, updated }
func (d *DailyNoteCard) stamp(id, created, updated string) { d.ID, d.CreatedAt, d.UpdatedAt = id, created, updated }
func (f *FocusSession) stamp(id, created, updated string)  { f.ID, f.CreatedAt, f.UpdatedAt = id, created, updated }

func (n Note) itemID() string          { return n.ID }
func (t Task) itemID() string          { return t.ID }
func (h Habit) itemID() string         { return h.ID }
func (j JournalEntry) itemID() string  { return j.ID }
func (b Bookmark) itemID() string      { return b.ID }
func (i Idea) itemID() string          { return i.ID }
func (d DailyNoteCard) itemID() string { return d.ID }
func (f FocusSession) itemID() string  { return f.ID }

func (n Note) created() string          { return n.CreatedAt }
func (t Task) created() string          { return t.CreatedAt }
func (h Habit) created() string         { return h.CreatedAt }
func (j JournalEntry) created() string  { return j.CreatedAt }
func (b Bookmark) created() string      { return b.CreatedAt }
func (i Idea) created() string          { return i.CreatedAt }
func (d DailyNoteCard) created() string { return d.CreatedAt }
func (f FocusSession) created() string  { return f.CreatedAt }
